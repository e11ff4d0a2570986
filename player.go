package musicstring

import (
	"errors"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"

	"github.com/cbegin/musicstring-go/internal/logger"
	"github.com/cbegin/musicstring-go/internal/midiout"
	"github.com/cbegin/musicstring-go/internal/notation"
	"github.com/cbegin/musicstring-go/internal/render"
	"github.com/cbegin/musicstring-go/internal/sequencer"
)

type (
	Sink         = midiout.Sink
	Clock        = render.Clock
	Song         = sequencer.Song
	ParserConfig = notation.ParserConfig
	ParseError   = notation.ParseError
	Parser       = notation.Parser
	State        = render.State
)

const (
	StateIdle     = render.StateIdle
	StateLoaded   = render.StateLoaded
	StatePlaying  = render.StatePlaying
	StateStopped  = render.StateStopped
	StateFinished = render.StateFinished
)

// ErrParse is returned when a music string had tokens that could not be
// classified. The partial song is still loaded.
var ErrParse = errors.New("music string did not parse cleanly")

var (
	ErrAlreadyPlaying = render.ErrAlreadyPlaying
	ErrNothingLoaded  = render.ErrNothingLoaded
)

// PlaybackEvent carries playback notifications from Watch().
type PlaybackEvent struct {
	Kind int // EventPlaybackStarted, EventPlaybackEnded, EventPlaybackStopped or EventSinkError
	Err  error
}

const (
	EventPlaybackStarted int = iota
	EventPlaybackEnded
	EventPlaybackStopped
	EventSinkError
)

func DefaultParserConfig() ParserConfig { return notation.DefaultParserConfig() }

type PlayerOption func(*playerConfig)

type playerConfig struct {
	sink   Sink
	port   int
	tick   time.Duration
	log    *log.Logger
	parser ParserConfig
	clock  Clock
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{tick: render.DefaultTick, parser: notation.DefaultParserConfig()}
}

// WithSink replaces the MIDI output port sink, e.g. with a synthesizer or a
// recorder. The player does not close a sink it did not create.
func WithSink(s Sink) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sink = s
	}
}

func WithOutputPort(port int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.port = port
	}
}

// WithTickResolution sets the timing loop granularity.
func WithTickResolution(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.tick = d
	}
}

func WithLogger(l *log.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.log = l
	}
}

func WithParserConfig(pc ParserConfig) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.parser = pc
	}
}

func WithClock(c Clock) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.clock = c
	}
}

type Player struct {
	mu        sync.Mutex
	parser    *notation.Parser
	builder   *sequencer.Builder
	engine    *render.Engine
	sink      Sink
	ownedSink *midiout.PortSink
	port      int
	tick      time.Duration
	log       *log.Logger
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.port < 0 {
		return nil, fault.New("output port must be non-negative", ftag.With(ftag.InvalidArgument))
	}
	if cfg.tick <= 0 {
		cfg.tick = render.DefaultTick
	}
	if cfg.log == nil {
		cfg.log = logger.Discard()
	}
	parser := notation.NewParser(cfg.parser)
	pc := parser.Config()
	p := &Player{
		parser:  parser,
		builder: sequencer.NewBuilder(sequencer.Config{Resolution: pc.Resolution, Tempo: pc.DefaultTempo}),
		sink:    cfg.sink,
		port:    cfg.port,
		tick:    cfg.tick,
		log:     cfg.log,
	}
	if p.sink == nil {
		p.ownedSink = midiout.NewPortSink()
		p.sink = p.ownedSink
	}
	p.parser.OnRecord(p.builder.Add)
	p.parser.OnError(func(_ *notation.Parser, err *notation.ParseError) {
		p.log.Warn("parse anomaly", "code", err.Code, "token", err.Token, "offset", err.Offset, "msg", err.Message)
	})

	engineOpts := []render.Option{
		render.WithLogger(cfg.log),
		render.WithErrorHandler(func(err error) {
			p.sendEvent(PlaybackEvent{Kind: EventSinkError, Err: err})
		}),
		render.WithFinishedHandler(func(st render.State) {
			kind := EventPlaybackEnded
			if st == render.StateStopped {
				kind = EventPlaybackStopped
			}
			p.sendEvent(PlaybackEvent{Kind: kind})
		}),
	}
	if cfg.clock != nil {
		engineOpts = append(engineOpts, render.WithClock(cfg.clock))
	}
	p.engine = render.New(engineOpts...)
	return p, nil
}

// Parser exposes the parser so callers can subscribe to traces, errors and
// records or seed the dictionary. Handlers run during Play, PlayAsync and
// SaveAsMidiFile. Definitions last for the life of the player; call
// Parser().Reset() to drop them.
func (p *Player) Parser() *Parser { return p.parser }

// Song returns the loaded song, nil before the first parse.
func (p *Player) Song() *Song { return p.engine.Song() }

// load parses text from a fresh context and loads the result, even when
// some tokens failed. The dictionary is kept. p.mu must be held.
func (p *Player) load(text string) (bool, error) {
	if p.engine.State() == render.StatePlaying {
		return false, fault.Wrap(ErrAlreadyPlaying, ftag.With(ftag.AlreadyExists))
	}
	p.parser.ResetContext()
	p.builder.Reset()
	ok := p.parser.Parse(text)
	if err := p.engine.Load(p.builder.Song()); err != nil {
		return ok, err
	}
	return ok, nil
}

// PlayAsync parses text and starts playback in the background.
func (p *Player) PlayAsync(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, err := p.load(text)
	if err != nil {
		return err
	}
	if !ok {
		return fault.Wrap(ErrParse, ftag.With(ftag.InvalidArgument))
	}
	if err := p.engine.BeginPlayAsync(p.sink, p.port, p.tick); err != nil {
		return err
	}
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackStarted})
	return nil
}

// Play plays text and blocks until it has finished.
func (p *Player) Play(text string) error {
	if err := p.PlayAsync(text); err != nil {
		return err
	}
	p.WaitTillDone()
	p.StopPlay()
	return nil
}

// StopPlay halts playback and waits for the timing loop to exit. It is safe
// to call at any time.
func (p *Player) StopPlay() { p.engine.StopPlay() }

func (p *Player) WaitTillDone() { p.engine.WaitTillDone() }

func (p *Player) State() State { return p.engine.State() }

// SaveAsMidiFile parses text and writes it to path without playing. A
// partial song is still written when parsing fails, and ErrParse returned.
func (p *Player) SaveAsMidiFile(text, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, err := p.load(text)
	if err != nil {
		return err
	}
	if err := p.SaveToMidiFile(path); err != nil {
		return err
	}
	if !ok {
		return fault.Wrap(ErrParse, ftag.With(ftag.InvalidArgument))
	}
	return nil
}

// SaveToMidiFile writes the loaded song to path.
func (p *Player) SaveToMidiFile(path string) error {
	if err := p.engine.SaveToFile(path); err != nil {
		return fault.Wrap(err, fmsg.With("save midi file"))
	}
	p.log.Info("midi file written", "path", path)
	return nil
}

// Close stops playback and closes the output ports the player opened.
func (p *Player) Close() error {
	p.StopPlay()
	if p.ownedSink != nil {
		return p.ownedSink.Close()
	}
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Watch returns a channel that receives playback events:
//   - EventPlaybackStarted: PlayAsync started the timing loop
//   - EventPlaybackEnded: every event was dispatched
//   - EventPlaybackStopped: StopPlay cut playback short
//   - EventSinkError: a message could not be sent (Err set); playback goes on
//
// The channel is buffered (cap 8) and events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}
