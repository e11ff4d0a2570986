package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/musicstring-go"
	"github.com/cbegin/musicstring-go/internal/audio"
	"github.com/cbegin/musicstring-go/internal/cli"
	"github.com/cbegin/musicstring-go/internal/logger"
	"github.com/cbegin/musicstring-go/internal/midiout"
	"github.com/cbegin/musicstring-go/internal/synth"
)

const defaultMusic = "T[Allegro] I[Piano] C D E F G A B C6w"

func main() {
	cfg, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		cli.PrintHelp(os.Stderr)
		os.Exit(2)
	}
	if cfg.ShowHelp {
		cli.PrintHelp(os.Stdout)
		return
	}
	lg, err := logger.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer midi.CloseDriver()

	if cfg.ListPorts {
		for _, port := range midiout.ListOutPorts() {
			fmt.Printf("%d: %s\n", port.Number, port.Name)
		}
		return
	}

	text, err := resolveInput(cfg)
	if err != nil {
		lg.Fatal("read input", "err", err)
	}

	sink, closeSink, err := openSink(cfg, lg)
	if err != nil {
		lg.Fatal("open output", "err", err)
	}
	defer closeSink()

	pl, err := musicstring.NewPlayer(
		musicstring.WithSink(sink),
		musicstring.WithOutputPort(cfg.Port),
		musicstring.WithTickResolution(cfg.Tick),
		musicstring.WithLogger(lg),
	)
	if err != nil {
		lg.Fatal("create player", "err", err)
	}

	if cfg.Output != "" {
		if err := pl.SaveAsMidiFile(text, cfg.Output); err != nil {
			lg.Fatal("export", "err", err)
		}
		return
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		lg.Info("interrupted")
		pl.StopPlay()
	}()

	ch := pl.Watch()
	if err := pl.PlayAsync(text); err != nil {
		if errors.Is(err, musicstring.ErrParse) {
			lg.Fatal("music string rejected", "err", err)
		}
		lg.Fatal("play", "err", err)
	}
	go func() {
		for event := range ch {
			if event.Kind == musicstring.EventSinkError {
				lg.Warn("send failed", "err", event.Err)
			}
		}
	}()
	pl.WaitTillDone()
	pl.StopPlay()
	lg.Info("playback completed", "state", pl.State())
}

func resolveInput(cfg *cli.Config) (string, error) {
	if strings.TrimSpace(cfg.Music) != "" {
		return cfg.Music, nil
	}
	if strings.TrimSpace(cfg.File) != "" {
		return musicstring.LoadMusicFile(cfg.File)
	}
	return defaultMusic, nil
}

// openSink picks the output: a recorder for dry runs, a SoundFont synthesizer
// when one is configured, otherwise the MIDI output ports.
func openSink(cfg *cli.Config, lg *log.Logger) (musicstring.Sink, func(), error) {
	switch {
	case cfg.DryRun:
		rec := &midiout.Recorder{}
		return rec, func() { lg.Info("dry run", "messages", rec.Len()) }, nil
	case cfg.SoundFont != "":
		sf, err := synth.LoadSoundFont(cfg.SoundFont)
		if err != nil {
			return nil, nil, err
		}
		s, err := synth.NewSynthesizer(sf, cfg.SampleRate)
		if err != nil {
			return nil, nil, err
		}
		sink := synth.NewSink(s)
		out, err := audio.NewOutput(cfg.SampleRate, sink)
		if err != nil {
			return nil, nil, err
		}
		out.Start()
		return sink, func() {
			if err := out.Close(); err != nil {
				lg.Warn("close audio", "err", err)
			}
		}, nil
	default:
		ports := midiout.NewPortSink()
		if err := ports.Open(cfg.Port); err != nil {
			return nil, nil, err
		}
		return ports, func() {
			if err := ports.Close(); err != nil {
				lg.Warn("close ports", "err", err)
			}
		}, nil
	}
}
