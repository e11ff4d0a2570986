package render

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/musicstring-go/internal/logger"
	"github.com/cbegin/musicstring-go/internal/midiout"
	"github.com/cbegin/musicstring-go/internal/sequencer"
)

type State int32

const (
	StateIdle State = iota
	StateLoaded
	StatePlaying
	StateStopped
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

const DefaultTick = 5 * time.Millisecond

var (
	ErrAlreadyPlaying = errors.New("already playing")
	ErrNothingLoaded  = errors.New("nothing loaded")
)

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithErrorHandler receives sink failures from the timing loop. It runs on
// the timing goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// WithFinishedHandler is called with StateFinished or StateStopped when the
// timing loop exits.
func WithFinishedHandler(fn func(State)) Option {
	return func(e *Engine) { e.onDone = fn }
}

// Engine plays a built song through a Sink on a background timing loop.
// Only the timing loop reads the timeline once playback has started.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	log      *log.Logger
	onError  func(error)
	onDone   func(State)
	song     *sequencer.Song
	timeline []sequencer.Dispatch
	done     chan struct{}

	state  atomic.Int32
	cancel atomic.Bool
}

func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = NewSystemClock()
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	return e
}

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) Song() *sequencer.Song {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.song
}

func alreadyPlaying() error {
	return fault.Wrap(ErrAlreadyPlaying, ftag.With(ftag.AlreadyExists))
}

func nothingLoaded() error {
	return fault.Wrap(ErrNothingLoaded, ftag.With(ftag.NotFound))
}

// Load replaces the song. It fails while playing.
func (e *Engine) Load(song *sequencer.Song) error {
	if song == nil {
		return fault.New("nil song", ftag.With(ftag.InvalidArgument))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == StatePlaying {
		return alreadyPlaying()
	}
	e.song = song
	e.timeline = song.Timeline()
	e.done = nil
	e.state.Store(int32(StateLoaded))
	e.log.Debug("song loaded", "tracks", len(song.Tracks), "events", len(e.timeline))
	return nil
}

func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == StatePlaying {
		return alreadyPlaying()
	}
	e.song = nil
	e.timeline = nil
	e.done = nil
	e.state.Store(int32(StateIdle))
	return nil
}

// BeginPlayAsync starts the timing loop. tick is the sleep between dispatch
// passes; zero or less selects DefaultTick.
func (e *Engine) BeginPlayAsync(sink midiout.Sink, port int, tick time.Duration) error {
	if sink == nil {
		return fault.New("nil sink", ftag.With(ftag.InvalidArgument))
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.State() {
	case StatePlaying:
		return alreadyPlaying()
	case StateIdle:
		return nothingLoaded()
	}
	if e.song.Empty() {
		return nothingLoaded()
	}
	done := make(chan struct{})
	e.done = done
	e.cancel.Store(false)
	e.state.Store(int32(StatePlaying))
	e.log.Info("playback started", "port", port, "tick", tick, "events", len(e.timeline))
	go e.run(sink, port, tick, e.timeline, done)
	return nil
}

func (e *Engine) run(sink midiout.Sink, port int, tick time.Duration, timeline []sequencer.Dispatch, done chan struct{}) {
	defer close(done)
	sounding := make(map[[2]uint8]struct{})
	channels := make(map[uint8]struct{})
	start := e.clock.Now()
	next := 0
	for {
		if e.cancel.Load() {
			e.silence(sink, port, sounding, channels)
			e.finish(StateStopped, next)
			return
		}
		elapsed := e.clock.Now() - start
		for next < len(timeline) && timeline[next].At <= elapsed {
			d := timeline[next]
			next++
			var ch, key, vel uint8
			switch {
			case d.Msg.GetNoteStart(&ch, &key, &vel):
				sounding[[2]uint8{ch, key}] = struct{}{}
			case d.Msg.GetNoteEnd(&ch, &key):
				delete(sounding, [2]uint8{ch, key})
			}
			channels[d.Channel] = struct{}{}
			if err := sink.Send(port, d.Msg); err != nil {
				e.report(err, d)
			}
		}
		if next >= len(timeline) {
			e.finish(StateFinished, next)
			return
		}
		e.clock.Sleep(tick)
	}
}

func (e *Engine) report(err error, d sequencer.Dispatch) {
	err = fault.Wrap(err, fmsg.With("dispatch "+d.Kind.String()))
	e.log.Error("sink failed", "tick", d.Tick, "track", d.Track, "err", err)
	if e.onError != nil {
		e.onError(err)
	}
}

// silence releases sounding notes, then sends All-Notes-Off on every
// channel used so far.
func (e *Engine) silence(sink midiout.Sink, port int, sounding map[[2]uint8]struct{}, channels map[uint8]struct{}) {
	held := make([][2]uint8, 0, len(sounding))
	for k := range sounding {
		held = append(held, k)
	}
	sort.Slice(held, func(i, j int) bool {
		if held[i][0] != held[j][0] {
			return held[i][0] < held[j][0]
		}
		return held[i][1] < held[j][1]
	})
	for _, k := range held {
		d := sequencer.Dispatch{Kind: sequencer.EventNoteOff, Channel: k[0], Msg: midi.NoteOff(k[0], k[1])}
		if err := sink.Send(port, d.Msg); err != nil {
			e.report(err, d)
		}
	}
	used := make([]int, 0, len(channels))
	for ch := range channels {
		used = append(used, int(ch))
	}
	sort.Ints(used)
	for _, ch := range used {
		d := sequencer.Dispatch{Kind: sequencer.EventControl, Channel: uint8(ch), Msg: midi.ControlChange(uint8(ch), midi.AllNotesOff, midi.Off)}
		if err := sink.Send(port, d.Msg); err != nil {
			e.report(err, d)
		}
	}
}

func (e *Engine) finish(state State, dispatched int) {
	e.state.Store(int32(state))
	e.log.Info("playback ended", "state", state, "dispatched", dispatched)
	if e.onDone != nil {
		e.onDone(state)
	}
}

// EndPlayAsync asks the timing loop to stop and waits for it to exit. It is
// a no-op when nothing is playing.
func (e *Engine) EndPlayAsync() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return
	}
	e.cancel.Store(true)
	<-done
}

func (e *Engine) StopPlay() { e.EndPlayAsync() }

// WaitTillDone blocks until the timing loop exits without stopping it.
func (e *Engine) WaitTillDone() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Engine) SaveToFile(path string) error {
	song := e.Song()
	if song.Empty() {
		return nothingLoaded()
	}
	return midiout.SaveFile(path, song)
}

// WriteTo writes the loaded song as a standard MIDI file.
func (e *Engine) WriteTo(w io.Writer) (int64, error) {
	song := e.Song()
	if song.Empty() {
		return 0, nothingLoaded()
	}
	var buf bytes.Buffer
	if err := midiout.WriteSMF(&buf, song); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}
