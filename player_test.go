package musicstring

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/musicstring-go/internal/midiout"
	"github.com/cbegin/musicstring-go/internal/notation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// gateClock blocks each Sleep until release is closed.
type gateClock struct {
	fakeClock
	release chan struct{}
}

func (c *gateClock) Sleep(d time.Duration) {
	<-c.release
	c.fakeClock.Sleep(d)
}

func newTestPlayer(t *testing.T, rec *midiout.Recorder, opts ...PlayerOption) *Player {
	t.Helper()
	opts = append([]PlayerOption{WithSink(rec), WithClock(&fakeClock{})}, opts...)
	pl, err := NewPlayer(opts...)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	return pl
}

func TestPlayerPlaysThroughSink(t *testing.T) {
	rec := &midiout.Recorder{}
	pl := newTestPlayer(t, rec, WithOutputPort(2))
	events := pl.Watch()
	if err := pl.Play("C D E"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if pl.State() != StateFinished {
		t.Fatalf("state = %s, want finished", pl.State())
	}
	msgs := rec.Messages()
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	var ch, key, vel uint8
	for i, want := range []uint8{60, 62, 64} {
		if !msgs[i*2].Msg.GetNoteStart(&ch, &key, &vel) || key != want {
			t.Fatalf("message %d = %v, want note-on %d", i*2, msgs[i*2].Msg, want)
		}
		if msgs[i*2].Port != 2 {
			t.Fatalf("message sent to port %d", msgs[i*2].Port)
		}
	}
	seen := map[int]bool{}
	for len(events) > 0 {
		seen[(<-events).Kind] = true
	}
	if !seen[EventPlaybackStarted] || !seen[EventPlaybackEnded] {
		t.Fatalf("expected started and ended events, got %v", seen)
	}
}

func TestPlayerParseFailureLoadsPartialSong(t *testing.T) {
	rec := &midiout.Recorder{}
	pl := newTestPlayer(t, rec)
	var codes []notation.ErrorCode
	pl.Parser().OnError(func(_ *Parser, err *ParseError) { codes = append(codes, err.Code) })

	err := pl.PlayAsync("C Z D")
	if !errors.Is(err, ErrParse) || ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if len(codes) != 1 || codes[0] != notation.CodeUnknownToken {
		t.Fatalf("expected one unknown token error, got %v", codes)
	}
	if rec.Len() != 0 || pl.State() != StateLoaded {
		t.Fatalf("playback should not start: sent=%d state=%s", rec.Len(), pl.State())
	}
	if got := pl.Song().EventCount(); got != 4 {
		t.Fatalf("partial song has %d events, want 4", got)
	}
	path := filepath.Join(t.TempDir(), "partial.mid")
	if err := pl.SaveToMidiFile(path); err != nil {
		t.Fatalf("save partial song: %v", err)
	}
}

func TestPlayerResetsContextBetweenSongs(t *testing.T) {
	rec := &midiout.Recorder{}
	pl := newTestPlayer(t, rec)
	if err := pl.Play("V1 I[Flute] C"); err != nil {
		t.Fatalf("first play: %v", err)
	}
	rec.Reset()
	if err := pl.Play("C"); err != nil {
		t.Fatalf("second play: %v", err)
	}
	var ch, key, vel uint8
	msgs := rec.Messages()
	if len(msgs) != 2 || !msgs[0].Msg.GetNoteStart(&ch, &key, &vel) || ch != 0 {
		t.Fatalf("second song should start on voice 0, got %v", msgs)
	}
}

func TestPlayerStopDuringPlayback(t *testing.T) {
	rec := &midiout.Recorder{}
	clock := &gateClock{release: make(chan struct{})}
	pl, err := NewPlayer(WithSink(rec), WithClock(clock), WithTickResolution(time.Millisecond))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if err := pl.PlayAsync("Cw Dw Ew"); err != nil {
		t.Fatalf("play async: %v", err)
	}
	if err := pl.PlayAsync("C"); !errors.Is(err, ErrAlreadyPlaying) {
		t.Fatalf("expected ErrAlreadyPlaying, got %v", err)
	}
	if err := pl.SaveAsMidiFile("C", filepath.Join(t.TempDir(), "x.mid")); !errors.Is(err, ErrAlreadyPlaying) {
		t.Fatalf("expected save to be rejected while playing, got %v", err)
	}
	stopped := make(chan struct{})
	go func() {
		pl.StopPlay()
		close(stopped)
	}()
	close(clock.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("StopPlay did not return")
	}
	if pl.State() != StateStopped && pl.State() != StateFinished {
		t.Fatalf("unexpected state %s", pl.State())
	}
	n := rec.Len()
	pl.StopPlay()
	if rec.Len() != n {
		t.Fatalf("messages sent after stop")
	}
}

func TestPlayerStopWithoutPlayback(t *testing.T) {
	pl := newTestPlayer(t, &midiout.Recorder{})
	pl.StopPlay()
	pl.WaitTillDone()
	if pl.State() != StateIdle {
		t.Fatalf("state = %s, want idle", pl.State())
	}
	if err := pl.SaveToMidiFile(filepath.Join(t.TempDir(), "x.mid")); !errors.Is(err, ErrNothingLoaded) {
		t.Fatalf("expected ErrNothingLoaded, got %v", err)
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSaveAsMidiFile(t *testing.T) {
	pl := newTestPlayer(t, &midiout.Recorder{})
	path := filepath.Join(t.TempDir(), "song.mid")
	if err := pl.SaveAsMidiFile("T[Allegro] C D E", path); err != nil {
		t.Fatalf("save: %v", err)
	}
	events, err := readEventsFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("expected 6 channel events, got %d", len(events))
	}
	if err := pl.SaveAsMidiFile("C Z", path); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for partial save, got %v", err)
	}
}

func TestNewPlayerRejectsNegativePort(t *testing.T) {
	if _, err := NewPlayer(WithOutputPort(-1)); ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestPlayerKeepsDictionaryBetweenSongs(t *testing.T) {
	pl := newTestPlayer(t, &midiout.Recorder{})
	pl.Parser().Dictionary().Define("Mine", 70)
	dir := t.TempDir()

	firstKey := func(path string) uint8 {
		t.Helper()
		events, err := readEventsFile(path)
		if err != nil || len(events) == 0 {
			t.Fatalf("read back %s: %v", path, err)
		}
		var ch, key, vel uint8
		if !events[0].Msg.GetNoteStart(&ch, &key, &vel) {
			t.Fatalf("expected a note-on first, got %v", events[0].Msg)
		}
		return key
	}

	seeded := filepath.Join(dir, "seeded.mid")
	if err := pl.SaveAsMidiFile("[Mine]q", seeded); err != nil {
		t.Fatalf("save seeded: %v", err)
	}
	if key := firstKey(seeded); key != 70 {
		t.Fatalf("[Mine] = %d, want 70", key)
	}

	if err := pl.SaveAsMidiFile("$Low=40 C", filepath.Join(dir, "define.mid")); err != nil {
		t.Fatalf("save define: %v", err)
	}
	reused := filepath.Join(dir, "reused.mid")
	if err := pl.SaveAsMidiFile("[Low]q", reused); err != nil {
		t.Fatalf("save reused: %v", err)
	}
	if key := firstKey(reused); key != 40 {
		t.Fatalf("[Low] = %d, want 40", key)
	}

	pl.Parser().Reset()
	if _, ok := pl.Parser().Dictionary().Resolve("Mine"); ok {
		t.Fatalf("Reset should drop user definitions")
	}
	if err := pl.SaveAsMidiFile("[Mine]q", seeded); err == nil {
		t.Fatalf("expected [Mine] to be rejected after Reset")
	}
}

func TestPlayerConcurrentPlayAsync(t *testing.T) {
	rec := &midiout.Recorder{Notify: make(chan midiout.Recorded, 8)}
	clock := &gateClock{release: make(chan struct{})}
	pl, err := NewPlayer(WithSink(rec), WithClock(clock), WithTickResolution(time.Millisecond))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	errs := make(chan error, 2)
	for _, text := range []string{"Cw Dw", "Ew Fw"} {
		go func(text string) { errs <- pl.PlayAsync(text) }(text)
	}
	started := 0
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			started++
		case !errors.Is(err, ErrAlreadyPlaying):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if started != 1 {
		t.Fatalf("expected exactly one playback to start, got %d", started)
	}

	first := <-rec.Notify
	var ch, key, vel, want uint8
	if !first.Msg.GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("expected a note-on, got %v", first.Msg)
	}
	if !pl.Song().Tracks[0].Events[0].Msg.GetNoteStart(&ch, &want, &vel) || key != want {
		t.Fatalf("playing %d but the loaded song starts with %d", key, want)
	}
	close(clock.release)
	pl.StopPlay()
}
