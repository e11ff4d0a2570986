package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source renders interleaved stereo float32 frames on demand.
type Source interface {
	Process(dst []float32)
}

// Stream adapts a Source to the little-endian float32 stereo byte stream
// the ebiten audio player reads.
type Stream struct {
	mu     sync.Mutex
	source Source
	buf    []float32
	frames int64
}

func NewStream(source Source) *Stream {
	return &Stream{source: source}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	clear(s.buf)
	s.source.Process(s.buf)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	s.frames += int64(frames)
	return frames * 8, nil
}

// Frames is the number of stereo frames produced so far.
func (s *Stream) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Stream) Close() error { return nil }

// Output plays a Source on the shared audio context.
type Output struct {
	player *ebitaudio.Player
	stream *Stream
}

var (
	contextOnce       sync.Once
	audioContext      *ebitaudio.Context
	contextSampleRate int
)

// The ebiten context is process wide and its rate cannot change.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", contextSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewOutput(sampleRate int, source Source) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	// keep latency low so live notes follow the timing loop closely
	pl.SetBufferSize(50 * time.Millisecond)
	return &Output{player: pl, stream: stream}, nil
}

func (o *Output) Start() { o.player.Play() }

func (o *Output) Position() time.Duration { return o.player.Position() }

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.stream.Close()
}
