package sequencer

import (
	"testing"
	"time"

	"github.com/cbegin/musicstring-go/internal/notation"
)

func build(t *testing.T, music string) *Song {
	t.Helper()
	p := notation.NewParser(notation.DefaultParserConfig())
	b := NewBuilder(DefaultConfig())
	p.OnRecord(b.Add)
	if !p.Parse(music) {
		t.Fatalf("parse %q failed", music)
	}
	return b.Song()
}

type placed struct {
	tick int
	kind EventKind
	key  uint8
}

func placements(tr *Track) []placed {
	out := make([]placed, 0, len(tr.Events))
	for _, ev := range tr.Events {
		var ch, key, vel uint8
		switch {
		case ev.Msg.GetNoteStart(&ch, &key, &vel):
		case ev.Msg.GetNoteEnd(&ch, &key):
		}
		out = append(out, placed{tick: ev.Tick, kind: ev.Kind, key: key})
	}
	return out
}

func TestBuilderSequentialNotes(t *testing.T) {
	song := build(t, "C D E")
	if len(song.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(song.Tracks))
	}
	got := placements(song.Tracks[0])
	want := []placed{
		{0, EventNoteOn, 60},
		{480, EventNoteOff, 60},
		{480, EventNoteOn, 62},
		{960, EventNoteOff, 62},
		{960, EventNoteOn, 64},
		{1440, EventNoteOff, 64},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if song.EndTick() != 1440 || song.EventCount() != 6 {
		t.Fatalf("unexpected end %d / count %d", song.EndTick(), song.EventCount())
	}
}

func TestBuilderParallelAndSequentialJoins(t *testing.T) {
	song := build(t, "Ch+Eq_Gq D")
	got := placements(song.Tracks[0])
	starts := map[uint8]int{}
	for _, p := range got {
		if p.kind == EventNoteOn {
			starts[p.key] = p.tick
		}
	}
	if starts[60] != 0 || starts[64] != 0 || starts[67] != 480 {
		t.Fatalf("unexpected group starts %v", starts)
	}
	if starts[62] != 960 {
		t.Fatalf("expected D after the longest branch at 960, got %d", starts[62])
	}
}

func TestBuilderChordAndRest(t *testing.T) {
	song := build(t, "Cmajh R E")
	got := placements(song.Tracks[0])
	ons := 0
	for _, p := range got {
		if p.kind == EventNoteOn && p.tick == 0 {
			ons++
		}
	}
	if ons != 3 {
		t.Fatalf("expected three chord note-ons at 0, got %d", ons)
	}
	last := got[len(got)-2]
	if last.kind != EventNoteOn || last.key != 64 || last.tick != 960+480 {
		t.Fatalf("expected E after rest at 1440, got %+v", last)
	}
}

func TestBuilderTies(t *testing.T) {
	song := build(t, "Cq- C-q D")
	got := placements(song.Tracks[0])
	want := []placed{
		{0, EventNoteOn, 60},
		{960, EventNoteOff, 60},
		{960, EventNoteOn, 62},
		{1440, EventNoteOff, 62},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuilderOpenTieReleasedInSnapshot(t *testing.T) {
	song := build(t, "Ch-")
	got := placements(song.Tracks[0])
	if len(got) != 2 || got[1].kind != EventNoteOff || got[1].tick != 960 {
		t.Fatalf("expected held note released at 960, got %+v", got)
	}
}

func TestBuilderVoicesAndDirectives(t *testing.T) {
	song := build(t, "I[Flute] C V1 X[Volume]=90 E @960 G T60")
	if len(song.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(song.Tracks))
	}
	first, second := song.Tracks[0], song.Tracks[1]
	if first.Voice != 0 || second.Voice != 1 || second.Channel != 1 {
		t.Fatalf("unexpected tracks %+v %+v", first, second)
	}
	if first.Events[0].Kind != EventProgram {
		t.Fatalf("expected program change first, got %s", first.Events[0].Kind)
	}
	var ch, prog uint8
	if !first.Events[0].Msg.GetProgramChange(&ch, &prog) || prog != 73 {
		t.Fatalf("expected program 73, got %v", first.Events[0].Msg)
	}
	// voice 1 has its own clock, starting at zero
	got := placements(second)
	if got[0].kind != EventControl || got[0].tick != 0 {
		t.Fatalf("expected controller at 0 on voice 1, got %+v", got[0])
	}
	if got[1].key != 64 || got[1].tick != 0 {
		t.Fatalf("expected E at 0 on voice 1, got %+v", got[1])
	}
	if got[3].key != 67 || got[3].tick != 960 {
		t.Fatalf("expected G moved to 960, got %+v", got[3])
	}
	if len(song.Tempos) != 2 || song.Tempos[1].Tick != 1440 || song.Tempos[1].BPM != 60 {
		t.Fatalf("unexpected tempo map %+v", song.Tempos)
	}
}

func TestBuilderLayersShareTrack(t *testing.T) {
	song := build(t, "L0 C D L1 E")
	if len(song.Tracks) != 1 {
		t.Fatalf("expected one track for voice 0, got %d", len(song.Tracks))
	}
	for _, p := range placements(song.Tracks[0]) {
		if p.key == 64 && p.kind == EventNoteOn && p.tick != 0 {
			t.Fatalf("layer 1 should start at its own clock, got %d", p.tick)
		}
	}
}

func TestEventOrderingAtSameTick(t *testing.T) {
	song := build(t, "C X7=100 C")
	got := placements(song.Tracks[0])
	kinds := []EventKind{EventNoteOn, EventNoteOff, EventControl, EventNoteOn, EventNoteOff}
	for i, k := range kinds {
		if got[i].kind != k {
			t.Fatalf("event %d is %s, want %s (%+v)", i, got[i].kind, k, got)
		}
	}
}

func TestTimelineMergesTracksInOrder(t *testing.T) {
	song := build(t, "V0 C V1 E")
	tl := song.Timeline()
	if len(tl) != 4 {
		t.Fatalf("expected 4 dispatches, got %d", len(tl))
	}
	if tl[0].Track != 0 || tl[1].Track != 1 || tl[2].Track != 0 || tl[3].Track != 1 {
		t.Fatalf("expected track order to break ties, got %+v", tl)
	}
	for i := 1; i < len(tl); i++ {
		if tl[i].At < tl[i-1].At {
			t.Fatalf("timeline not monotonic at %d", i)
		}
	}
	if tl[2].At != 500*time.Millisecond {
		t.Fatalf("quarter note at 120 BPM should end at 500ms, got %v", tl[2].At)
	}
}

func TestTimeAtFollowsTempoMap(t *testing.T) {
	song := &Song{Resolution: 1920, PPQ: 480, Tempos: []TempoChange{{0, 120}, {480, 60}}}
	if got := song.TimeAt(480); got != 500*time.Millisecond {
		t.Fatalf("TimeAt(480) = %v", got)
	}
	if got := song.TimeAt(960); got != 1500*time.Millisecond {
		t.Fatalf("TimeAt(960) = %v", got)
	}
}

func TestBuilderReset(t *testing.T) {
	p := notation.NewParser(notation.DefaultParserConfig())
	b := NewBuilder(DefaultConfig())
	p.OnRecord(b.Add)
	p.Parse("C D V2 E")
	b.Reset()
	if song := b.Song(); !song.Empty() || len(song.Tempos) != 1 {
		t.Fatalf("expected empty song after reset, got %+v", song)
	}
}

func TestBuilderClampsHugeDurations(t *testing.T) {
	song := build(t, "C/99999999999999999999 D")
	end := notation.MaxDuration * DefaultConfig().Resolution
	got := placements(song.Tracks[0])
	want := []placed{
		{0, EventNoteOn, 60},
		{end, EventNoteOff, 60},
		{end, EventNoteOn, 62},
		{end + 480, EventNoteOff, 62},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
