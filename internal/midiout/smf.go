package midiout

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/musicstring-go/internal/sequencer"
)

// WriteSMF encodes song as a format 1 file: a conductor track carrying the
// meter and tempo map, then one track per song track.
func WriteSMF(w io.Writer, song *sequencer.Song) error {
	if song.Empty() {
		return fault.New("no events to write", ftag.With(ftag.InvalidArgument))
	}
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(song.PPQ)

	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(4, 4))
	last := 0
	for _, tc := range song.Tempos {
		conductor.Add(uint32(tc.Tick-last), smf.MetaTempo(tc.BPM))
		last = tc.Tick
	}
	conductor.Close(0)
	if err := sm.Add(conductor); err != nil {
		return fault.Wrap(err, fmsg.With("add conductor track"))
	}

	for _, tr := range song.Tracks {
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(tr.Name))
		last = 0
		for _, ev := range tr.Events {
			track.Add(uint32(ev.Tick-last), ev.Msg)
			last = ev.Tick
		}
		track.Close(uint32(max(0, tr.EndTick-last)))
		if err := sm.Add(track); err != nil {
			return fault.Wrap(err, fmsg.With("add track "+tr.Name))
		}
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("write midi file"))
	}
	return nil
}

func EncodeSMF(song *sequencer.Song) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, song); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveFile writes song to path. A partially written file is removed.
func SaveFile(path string, song *sequencer.Song) error {
	data, err := EncodeSMF(song)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = os.Remove(path)
		return fault.Wrap(err, fmsg.With("save "+path))
	}
	return nil
}

type FileEvent struct {
	Track int
	Tick  int
	Msg   midi.Message
}

type File struct {
	PPQ    int
	Events []FileEvent
	Tempos []sequencer.TempoChange
}

// Read decodes a standard MIDI file. Meta and system messages are kept out
// of Events; tempo metas become Tempos.
func Read(r io.Reader) (*File, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("read midi file"), ftag.With(ftag.InvalidArgument))
	}
	f := &File{}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		f.PPQ = int(mt)
	}
	for ti, tr := range s.Tracks {
		tick := 0
		for _, ev := range tr {
			tick += int(ev.Delta)
			msg := ev.Message
			var bpm float64
			switch {
			case msg.GetMetaTempo(&bpm):
				f.Tempos = append(f.Tempos, sequencer.TempoChange{Tick: tick, BPM: bpm})
			case len(msg) > 0 && msg[0] < 0xF0:
				f.Events = append(f.Events, FileEvent{Track: ti, Tick: tick, Msg: midi.Message(msg)})
			}
		}
	}
	return f, nil
}

// ReadEvents returns channel events of every track merged by tick. Events
// sharing a tick keep track order.
func ReadEvents(r io.Reader) ([]FileEvent, error) {
	f, err := Read(r)
	if err != nil {
		return nil, err
	}
	events := f.Events
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	return events, nil
}
