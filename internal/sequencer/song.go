package sequencer

import (
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

type EventKind int

const (
	EventNoteOff EventKind = iota + 1
	EventControl
	EventProgram
	EventNoteOn
)

// order puts note-offs first and note-ons last among events sharing a tick,
// so a retriggered pitch is released before it sounds again.
func (k EventKind) order() int {
	switch k {
	case EventNoteOff:
		return 0
	case EventNoteOn:
		return 2
	}
	return 1
}

func (k EventKind) String() string {
	switch k {
	case EventNoteOff:
		return "note-off"
	case EventControl:
		return "control"
	case EventProgram:
		return "program"
	case EventNoteOn:
		return "note-on"
	}
	return "unknown"
}

type Event struct {
	Tick int
	Kind EventKind
	Msg  midi.Message
}

type Track struct {
	Name    string
	Voice   int
	Channel uint8
	Events  []Event
	EndTick int
}

type TempoChange struct {
	Tick int
	BPM  float64
}

// Song is the built event list. Resolution is ticks per whole note and PPQ
// ticks per quarter note.
type Song struct {
	Resolution int
	PPQ        int
	Tracks     []*Track
	Tempos     []TempoChange
}

// Dispatch is one event of the merged timeline.
type Dispatch struct {
	At      time.Duration
	Tick    int
	Track   int
	Kind    EventKind
	Channel uint8
	Msg     midi.Message
}

func (s *Song) EndTick() int {
	end := 0
	for _, tr := range s.Tracks {
		end = max(end, tr.EndTick)
	}
	return end
}

// EventCount is the number of channel events over all tracks. Tempo changes
// are not counted.
func (s *Song) EventCount() int {
	n := 0
	for _, tr := range s.Tracks {
		n += len(tr.Events)
	}
	return n
}

func (s *Song) Empty() bool { return s == nil || s.EventCount() == 0 }

func (s *Song) Duration() time.Duration { return s.TimeAt(s.EndTick()) }

// TimeAt converts an absolute tick to elapsed time through the tempo map.
func (s *Song) TimeAt(tick int) time.Duration {
	bpm := 120.0
	last := 0
	var elapsed float64
	for _, tc := range s.Tempos {
		if tc.Tick >= tick {
			break
		}
		elapsed += s.ticksToSeconds(tc.Tick-last, bpm)
		last, bpm = tc.Tick, tc.BPM
	}
	elapsed += s.ticksToSeconds(tick-last, bpm)
	return time.Duration(elapsed * float64(time.Second))
}

func (s *Song) ticksToSeconds(ticks int, bpm float64) float64 {
	if bpm <= 0 || s.PPQ <= 0 {
		return 0
	}
	return float64(ticks) * 60 / (bpm * float64(s.PPQ))
}

// Timeline merges all tracks into dispatch order. Events at the same instant
// keep track creation order, then per-track order.
func (s *Song) Timeline() []Dispatch {
	out := make([]Dispatch, 0, s.EventCount())
	for ti, tr := range s.Tracks {
		for _, ev := range tr.Events {
			out = append(out, Dispatch{Tick: ev.Tick, Track: ti, Kind: ev.Kind, Channel: tr.Channel, Msg: ev.Msg})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	for i := range out {
		out[i].At = s.TimeAt(out[i].Tick)
	}
	return out
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Tick != events[j].Tick {
			return events[i].Tick < events[j].Tick
		}
		return events[i].Kind.order() < events[j].Kind.order()
	})
}
