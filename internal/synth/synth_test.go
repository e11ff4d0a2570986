package synth

import (
	"path/filepath"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
)

type call struct{ ch, cmd, d1, d2 int32 }

type fakeSynth struct {
	calls    []call
	rendered int
}

func (f *fakeSynth) ProcessMidiMessage(ch, cmd, d1, d2 int32) {
	f.calls = append(f.calls, call{ch, cmd, d1, d2})
}

func (f *fakeSynth) Render(left, right []float32) {
	f.rendered += len(left)
	for i := range left {
		left[i] = 0.5
		right[i] = -0.5
	}
}

func TestSinkDecodesChannelMessages(t *testing.T) {
	fs := &fakeSynth{}
	s := NewSink(fs)
	msgs := []midi.Message{
		midi.NoteOn(2, 60, 100),
		midi.NoteOff(2, 60),
		midi.ProgramChange(9, 73),
		midi.ControlChange(0, 7, 90),
	}
	for _, m := range msgs {
		if err := s.Send(0, m); err != nil {
			t.Fatalf("send %v failed: %v", m, err)
		}
	}
	want := []call{
		{2, 0x90, 60, 100},
		{2, 0x80, 60, 0},
		{9, 0xC0, 73, 0},
		{0, 0xB0, 7, 90},
	}
	if len(fs.calls) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), fs.calls)
	}
	for i := range want {
		if fs.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, fs.calls[i], want[i])
		}
	}
}

func TestSinkRejectsNonChannelMessages(t *testing.T) {
	s := NewSink(&fakeSynth{})
	for _, m := range []midi.Message{nil, {0xFF, 0x2F, 0x00}, {0x40}} {
		err := s.Send(0, m)
		if err == nil || ftag.Get(err) != ftag.InvalidArgument {
			t.Fatalf("expected invalid argument for %v, got %v", m, err)
		}
	}
}

func TestSinkProcessInterleaves(t *testing.T) {
	fs := &fakeSynth{}
	s := NewSink(fs)
	dst := make([]float32, 8)
	s.Process(dst)
	if fs.rendered != 4 {
		t.Fatalf("expected 4 frames rendered, got %d", fs.rendered)
	}
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != 0.5 || dst[i+1] != -0.5 {
			t.Fatalf("frame %d = %v,%v", i/2, dst[i], dst[i+1])
		}
	}
}

func TestLoadSoundFontMissing(t *testing.T) {
	_, err := LoadSoundFont(filepath.Join(t.TempDir(), "none.sf2"))
	if err == nil || ftag.Get(err) != ftag.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
