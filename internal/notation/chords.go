package notation

import (
	"sort"
	"strings"
)

var chordIntervals = map[string][]int{
	"MAJ":   {0, 4, 7},
	"MIN":   {0, 3, 7},
	"AUG":   {0, 4, 8},
	"DIM":   {0, 3, 6},
	"DOM7":  {0, 4, 7, 10},
	"MAJ7":  {0, 4, 7, 11},
	"MIN7":  {0, 3, 7, 10},
	"SUS4":  {0, 5, 7},
	"SUS2":  {0, 2, 7},
	"MAJ6":  {0, 4, 7, 9},
	"MIN6":  {0, 3, 7, 9},
	"DOM9":  {0, 4, 7, 10, 14},
	"MAJ9":  {0, 4, 7, 11, 14},
	"MIN9":  {0, 3, 7, 10, 14},
	"DIM7":  {0, 3, 6, 9},
	"ADD9":  {0, 4, 7, 14},
	"MIN11": {0, 7, 10, 14, 15, 17},
	"DOM11": {0, 7, 10, 14, 17},
	"DOM13": {0, 7, 10, 14, 16, 21},
	"MIN13": {0, 7, 10, 14, 15, 21},
	"MAJ13": {0, 7, 11, 14, 16, 21},
}

// chordNames is longest first so MAJ7 wins over MAJ.
var chordNames = func() []string {
	names := make([]string, 0, len(chordIntervals))
	for name := range chordIntervals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

func matchChord(s string, at int) ([]int, int, bool) {
	rest := strings.ToUpper(s[at:])
	for _, name := range chordNames {
		if strings.HasPrefix(rest, name) {
			return chordIntervals[name], at + len(name), true
		}
	}
	return nil, at, false
}

// voiceChord stacks intervals on root and applies inversions by lifting the
// lowest note an octave for each one.
func voiceChord(root int, intervals []int, inversions int) []int {
	notes := make([]int, len(intervals))
	for i, iv := range intervals {
		notes[i] = root + iv
	}
	for k := 0; k < inversions%len(notes); k++ {
		low := notes[0]
		copy(notes, notes[1:])
		notes[len(notes)-1] = low + 12
	}
	for i := range notes {
		notes[i] = clampInt(notes[i], 0, 127)
	}
	return notes
}
