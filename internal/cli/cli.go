package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvLogLevel  = "MUSICSTRING_LOG_LEVEL"
	EnvPort      = "MUSICSTRING_PORT"
	EnvSoundFont = "MUSICSTRING_SOUNDFONT"
)

type Config struct {
	Music      string
	File       string
	Output     string
	Port       int
	ListPorts  bool
	SoundFont  string
	SampleRate int
	Tick       time.Duration
	LogLevel   string
	DryRun     bool
	ShowHelp   bool
}

// ParseArgs reads flags, then fills unset ones from the environment.
// Remaining arguments are joined into the music string.
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("play_ms", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &Config{}
	var tickMs int
	fs.StringVar(&cfg.File, "file", "", "read the music string from a file")
	fs.StringVar(&cfg.Output, "out", "", "write a standard MIDI file instead of playing")
	fs.IntVar(&cfg.Port, "port", 0, "MIDI output port number")
	fs.BoolVar(&cfg.ListPorts, "list", false, "list MIDI output ports and exit")
	fs.StringVar(&cfg.SoundFont, "soundfont", "", "play through a SoundFont synthesizer instead of a MIDI port")
	fs.IntVar(&cfg.SampleRate, "sample-rate", 44100, "synthesizer sample rate")
	fs.IntVar(&tickMs, "tick", 5, "timing loop granularity in milliseconds")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "schedule without any output device")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "show help")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["log-level"] {
		if v := os.Getenv(EnvLogLevel); v != "" {
			cfg.LogLevel = strings.ToLower(v)
		}
	}
	if !set["port"] {
		if v := os.Getenv(EnvPort); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", EnvPort, v)
			}
			cfg.Port = port
		}
	}
	if !set["soundfont"] {
		cfg.SoundFont = os.Getenv(EnvSoundFont)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.Port < 0 {
		return nil, fmt.Errorf("port must be non-negative, got %d", cfg.Port)
	}
	if tickMs <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %d", tickMs)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	cfg.Tick = time.Duration(tickMs) * time.Millisecond
	cfg.Music = strings.Join(fs.Args(), " ")
	return cfg, nil
}

func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `play_ms - play or export music strings

Usage:
  play_ms [options] [music string...]

Options:
  -file <path>          read the music string from a file
  -out <path>           write a standard MIDI file instead of playing
  -port <n>             MIDI output port number (default 0)
  -list                 list MIDI output ports
  -soundfont <path>     render through a SoundFont instead of a MIDI port
  -sample-rate <hz>     synthesizer sample rate (default 44100)
  -tick <ms>            timing loop granularity (default 5)
  -log-level <level>    debug, info, warn, error (default info)
  -dry-run              schedule without output
  -h, -help             show this help

Environment Variables:
  %s=<level>
  %s=<n>
  %s=<path>

Examples:
  play_ms "T[Allegro] I[Flute] C D E F G"
  play_ms -out song.mid -file song.txt
`, EnvLogLevel, EnvPort, EnvSoundFont)
}
