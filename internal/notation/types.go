package notation

import "github.com/cbegin/musicstring-go/internal/scan"

type RecordKind int

const (
	RecordNote RecordKind = iota + 1
	RecordDirective
)

type DirectiveKind int

const (
	DirectiveInstrument DirectiveKind = iota + 1
	DirectiveTempo
	DirectiveKeySignature
	DirectiveVoice
	DirectiveLayer
	DirectiveController
	DirectiveDefine
	DirectiveTime
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveInstrument:
		return "instrument"
	case DirectiveTempo:
		return "tempo"
	case DirectiveKeySignature:
		return "key"
	case DirectiveVoice:
		return "voice"
	case DirectiveLayer:
		return "layer"
	case DirectiveController:
		return "controller"
	case DirectiveDefine:
		return "define"
	case DirectiveTime:
		return "time"
	}
	return "unknown"
}

// Note is a resolved note clause before time assignment. Duration is in
// whole notes with any tuplet scaling already applied.
type Note struct {
	Value       int
	Chord       []int
	PitchClass  int
	Octave      int
	Accidentals int
	Raw         bool
	Rest        bool
	Duration    float64
	TupletNum   int
	TupletDen   int
	Attack      int
	Decay       int
	TieStart    bool
	TieEnd      bool
}

// Pitches returns every sounding pitch of the note, root first.
func (n Note) Pitches() []int {
	if n.Rest {
		return nil
	}
	if len(n.Chord) > 0 {
		return n.Chord
	}
	return []int{n.Value}
}

type Directive struct {
	Kind       DirectiveKind
	Value      int
	Float      float64
	Name       string
	Controller int
}

type Record struct {
	Kind      RecordKind
	Join      scan.JoinKind
	Token     string
	Note      Note
	Directive Directive
}

type ParserConfig struct {
	Resolution      int
	DefaultOctave   int
	MaxOctave       int
	DefaultDuration float64
	DefaultAttack   int
	DefaultDecay    int
	DefaultTempo    int
	// StickyDefaults makes an explicit octave or duration the new default
	// for following notes that omit it.
	StickyDefaults bool
}

func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Resolution:      1920,
		DefaultOctave:   5,
		MaxOctave:       10,
		DefaultDuration: 0.25,
		DefaultAttack:   64,
		DefaultDecay:    64,
		DefaultTempo:    120,
	}
}
