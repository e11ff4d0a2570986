package sequencer

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/musicstring-go/internal/notation"
	"github.com/cbegin/musicstring-go/internal/scan"
)

type Config struct {
	// Resolution is ticks per whole note and must be a multiple of 4.
	Resolution int
	// Tempo is the initial tempo in BPM.
	Tempo int
}

func DefaultConfig() Config {
	return Config{Resolution: 1920, Tempo: 120}
}

type lane struct{ voice, layer int }

type tieKey struct {
	lane  lane
	pitch int
}

type pendingTie struct {
	off      int
	velocity uint8
}

// group is the time span of one note token. Parallel elements restart at
// start; the lane clock moves to end when the group closes.
type group struct {
	open   bool
	lane   lane
	start  int
	cursor int
	end    int
}

// Builder assigns ticks to parser records and collects per-voice tracks.
type Builder struct {
	cfg    Config
	tracks []*Track
	voices map[int]*Track
	tempos []TempoChange
	clocks map[lane]int
	ties   map[tieKey]pendingTie
	voice  int
	layer  int
	grp    group
}

func NewBuilder(cfg Config) *Builder {
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultConfig().Resolution
	}
	if cfg.Tempo <= 0 {
		cfg.Tempo = DefaultConfig().Tempo
	}
	b := &Builder{cfg: cfg}
	b.Reset()
	return b
}

func (b *Builder) Reset() {
	b.tracks = nil
	b.voices = make(map[int]*Track)
	b.tempos = []TempoChange{{Tick: 0, BPM: float64(b.cfg.Tempo)}}
	b.clocks = make(map[lane]int)
	b.ties = make(map[tieKey]pendingTie)
	b.voice, b.layer = 0, 0
	b.grp = group{}
}

// Add places one record. It is shaped to be passed to Parser.OnRecord.
func (b *Builder) Add(rec notation.Record) {
	switch rec.Kind {
	case notation.RecordDirective:
		b.closeGroup()
		b.directive(rec.Directive)
	case notation.RecordNote:
		b.note(rec.Join, rec.Note)
	}
}

func (b *Builder) current() lane { return lane{voice: b.voice, layer: b.layer} }

func (b *Builder) track(voice int) *Track {
	if tr, ok := b.voices[voice]; ok {
		return tr
	}
	tr := &Track{Name: fmt.Sprintf("Voice %d", voice), Voice: voice, Channel: uint8(voice & 0x0f)}
	b.voices[voice] = tr
	b.tracks = append(b.tracks, tr)
	return tr
}

func (b *Builder) push(voice int, ev Event) {
	tr := b.track(voice)
	tr.Events = append(tr.Events, ev)
	tr.EndTick = max(tr.EndTick, ev.Tick)
}

func (b *Builder) directive(d notation.Directive) {
	at := b.clocks[b.current()]
	switch d.Kind {
	case notation.DirectiveVoice:
		b.voice = d.Value
	case notation.DirectiveLayer:
		b.layer = d.Value
	case notation.DirectiveInstrument:
		ch := b.track(b.voice).Channel
		b.push(b.voice, Event{Tick: at, Kind: EventProgram, Msg: midi.ProgramChange(ch, uint8(d.Value))})
	case notation.DirectiveController:
		ch := b.track(b.voice).Channel
		b.push(b.voice, Event{Tick: at, Kind: EventControl, Msg: midi.ControlChange(ch, uint8(d.Controller), uint8(d.Value))})
	case notation.DirectiveTempo:
		b.setTempo(at, float64(d.Value))
	case notation.DirectiveTime:
		b.clocks[b.current()] = d.Value
	}
}

// setTempo keeps the tempo map sorted with one entry per tick.
func (b *Builder) setTempo(tick int, bpm float64) {
	i := sort.Search(len(b.tempos), func(i int) bool { return b.tempos[i].Tick >= tick })
	if i < len(b.tempos) && b.tempos[i].Tick == tick {
		b.tempos[i].BPM = bpm
		return
	}
	b.tempos = append(b.tempos, TempoChange{})
	copy(b.tempos[i+1:], b.tempos[i:])
	b.tempos[i] = TempoChange{Tick: tick, BPM: bpm}
}

func (b *Builder) openGroup() {
	l := b.current()
	at := b.clocks[l]
	b.grp = group{open: true, lane: l, start: at, cursor: at, end: at}
}

func (b *Builder) closeGroup() {
	if !b.grp.open {
		return
	}
	b.clocks[b.grp.lane] = b.grp.end
	b.grp.open = false
}

// ticks converts whole notes to ticks, at least one and at most
// notation.MaxDuration whole notes.
func (b *Builder) ticks(duration float64) int {
	t := math.Min(duration, notation.MaxDuration) * float64(b.cfg.Resolution)
	if math.IsNaN(t) || t < 1 {
		return 1
	}
	return int(math.Round(t))
}

func (b *Builder) note(join scan.JoinKind, n notation.Note) {
	switch {
	case join == scan.JoinNone || !b.grp.open:
		b.closeGroup()
		b.openGroup()
	case join == scan.JoinParallel:
		b.grp.cursor = b.grp.start
	}
	at := b.grp.cursor
	length := b.ticks(n.Duration)
	b.grp.cursor += length
	b.grp.end = max(b.grp.end, b.grp.cursor)
	if n.Rest {
		return
	}

	l := b.grp.lane
	tr := b.track(l.voice)
	on := uint8(max(1, min(n.Attack, 127)))
	off := uint8(max(0, min(n.Decay, 127)))
	for _, pitch := range n.Pitches() {
		key := tieKey{lane: l, pitch: pitch}
		end := at + length
		if tie, ok := b.ties[key]; ok {
			delete(b.ties, key)
			if n.TieEnd {
				if n.TieStart {
					b.ties[key] = pendingTie{off: end, velocity: off}
					continue
				}
				b.push(l.voice, Event{Tick: end, Kind: EventNoteOff, Msg: midi.NoteOffVelocity(tr.Channel, uint8(pitch), tie.velocity)})
				continue
			}
			// an untied repeat releases the held note first
			b.push(l.voice, Event{Tick: tie.off, Kind: EventNoteOff, Msg: midi.NoteOffVelocity(tr.Channel, uint8(pitch), tie.velocity)})
		}
		b.push(l.voice, Event{Tick: at, Kind: EventNoteOn, Msg: midi.NoteOn(tr.Channel, uint8(pitch), on)})
		if n.TieStart {
			b.ties[key] = pendingTie{off: end, velocity: off}
			continue
		}
		b.push(l.voice, Event{Tick: end, Kind: EventNoteOff, Msg: midi.NoteOffVelocity(tr.Channel, uint8(pitch), off)})
	}
}

// Song returns a snapshot of what has been built so far. Open ties are
// released at their own end.
func (b *Builder) Song() *Song {
	song := &Song{
		Resolution: b.cfg.Resolution,
		PPQ:        b.cfg.Resolution / 4,
		Tempos:     append([]TempoChange(nil), b.tempos...),
	}
	index := make(map[int]int, len(b.tracks))
	for i, tr := range b.tracks {
		cp := *tr
		cp.Events = append([]Event(nil), tr.Events...)
		song.Tracks = append(song.Tracks, &cp)
		index[tr.Voice] = i
	}
	keys := make([]tieKey, 0, len(b.ties))
	for key := range b.ties {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lane != keys[j].lane {
			if keys[i].lane.voice != keys[j].lane.voice {
				return keys[i].lane.voice < keys[j].lane.voice
			}
			return keys[i].lane.layer < keys[j].lane.layer
		}
		return keys[i].pitch < keys[j].pitch
	})
	for _, key := range keys {
		tie := b.ties[key]
		cp := song.Tracks[index[key.lane.voice]]
		cp.Events = append(cp.Events, Event{Tick: tie.off, Kind: EventNoteOff, Msg: midi.NoteOffVelocity(cp.Channel, uint8(key.pitch), tie.velocity)})
		cp.EndTick = max(cp.EndTick, tie.off)
	}
	for l, clock := range b.clocks {
		if tr, ok := b.voices[l.voice]; ok {
			cp := song.Tracks[index[tr.Voice]]
			cp.EndTick = max(cp.EndTick, clock)
		}
	}
	if b.grp.open {
		if i, ok := index[b.grp.lane.voice]; ok {
			song.Tracks[i].EndTick = max(song.Tracks[i].EndTick, b.grp.end)
		}
	}
	for _, tr := range song.Tracks {
		sortEvents(tr.Events)
	}
	return song
}
