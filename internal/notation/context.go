package notation

import "strings"

// Context is the running state of one parser: defaults applied to notes
// that omit a clause, plus the directive-controlled state.
type Context struct {
	Octave     int
	Duration   float64
	Attack     int
	Decay      int
	Instrument int
	Tempo      int
	Voice      int
	Layer      int
	// Key is the number of sharps (positive) or flats (negative).
	Key int
}

func newContext(cfg ParserConfig) Context {
	return Context{
		Octave:   cfg.DefaultOctave,
		Duration: cfg.DefaultDuration,
		Attack:   cfg.DefaultAttack,
		Decay:    cfg.DefaultDecay,
		Tempo:    cfg.DefaultTempo,
	}
}

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

const (
	sharpOrder = "fcgdaeb"
	flatOrder  = "beadgcf"
)

// keyAdjust returns the implicit accidental the key signature gives letter.
func keyAdjust(key int, letter byte) int {
	switch {
	case key > 0:
		if strings.IndexByte(sharpOrder[:min(key, 7)], letter) >= 0 {
			return 1
		}
	case key < 0:
		if strings.IndexByte(flatOrder[:min(-key, 7)], letter) >= 0 {
			return -1
		}
	}
	return 0
}

var majorKeys = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
	"F": -1, "BB": -2, "EB": -3, "AB": -4, "DB": -5, "GB": -6, "CB": -7,
}

var minorKeys = map[string]int{
	"A": 0, "E": 1, "B": 2, "F#": 3, "C#": 4, "G#": 5, "D#": 6, "A#": 7,
	"D": -1, "G": -2, "C": -3, "F": -4, "BB": -5, "EB": -6, "AB": -7,
}

// lookupKey resolves names such as "Cmaj", "Amin", "Bbmaj" or "F#min". A bare
// tonic is read as major.
func lookupKey(name string) (int, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(n, "MAJ"):
		v, ok := majorKeys[strings.TrimSuffix(n, "MAJ")]
		return v, ok
	case strings.HasSuffix(n, "MIN"):
		v, ok := minorKeys[strings.TrimSuffix(n, "MIN")]
		return v, ok
	}
	v, ok := majorKeys[n]
	return v, ok
}
