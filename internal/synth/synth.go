package synth

import (
	"bytes"
	"os"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2"
)

const DefaultSampleRate = 44100

// Synthesizer is the part of meltysynth.Synthesizer the sink drives.
type Synthesizer interface {
	ProcessMidiMessage(channel, command, data1, data2 int32)
	Render(left, right []float32)
}

func LoadSoundFont(path string) (*meltysynth.SoundFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("read soundfont "+path), ftag.With(ftag.NotFound))
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("parse soundfont "+path), ftag.With(ftag.InvalidArgument))
	}
	return sf, nil
}

func NewSynthesizer(sf *meltysynth.SoundFont, sampleRate int) (*meltysynth.Synthesizer, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	s, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("create synthesizer"))
	}
	return s, nil
}

// Sink feeds short messages to a software synthesizer and renders its
// output for the audio stream. Ports are ignored.
type Sink struct {
	mu    sync.Mutex
	synth Synthesizer
	left  []float32
	right []float32
}

func NewSink(s Synthesizer) *Sink {
	return &Sink{synth: s}
}

func (s *Sink) Send(_ int, msg midi.Message) error {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return fault.New("not a channel message", ftag.With(ftag.InvalidArgument))
	}
	var d1, d2 int32
	if len(msg) > 1 {
		d1 = int32(msg[1])
	}
	if len(msg) > 2 {
		d2 = int32(msg[2])
	}
	s.mu.Lock()
	s.synth.ProcessMidiMessage(int32(msg[0]&0x0f), int32(msg[0]&0xf0), d1, d2)
	s.mu.Unlock()
	return nil
}

// Process renders len(dst)/2 interleaved stereo frames.
func (s *Sink) Process(dst []float32) {
	frames := len(dst) / 2
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	left, right := s.left[:frames], s.right[:frames]
	s.synth.Render(left, right)
	for i := 0; i < frames; i++ {
		dst[i*2] = left[i]
		dst[i*2+1] = right[i]
	}
}
