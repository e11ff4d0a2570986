package notation

import (
	"math"
	"strconv"
	"strings"

	"github.com/cbegin/musicstring-go/internal/scan"
)

// MaxDuration is the longest note, in whole notes.
const MaxDuration = 1 << 16

var durationLetters = map[byte]float64{
	'w': 1,
	'h': 1.0 / 2,
	'q': 1.0 / 4,
	'i': 1.0 / 8,
	's': 1.0 / 16,
	't': 1.0 / 32,
	'x': 1.0 / 64,
	'o': 1.0 / 128,
}

type bracketStatus int

const (
	bracketOK bracketStatus = iota
	bracketUnmatched
	bracketEmpty
)

// readBracket reads "[...]" starting at s[at] == '['.
func readBracket(s string, at int) (string, int, bracketStatus) {
	end := scan.MatchBracket(s, at)
	if end < 0 {
		return "", len(s), bracketUnmatched
	}
	content := strings.TrimSpace(s[at+1 : end])
	next := end + 1
	if content == "" {
		return "", next, bracketEmpty
	}
	return content, next, bracketOK
}

// clause walks one note element. base is the element's offset in the
// parsed input, used for error positions.
type clause struct {
	p    *Parser
	s    string
	base int
	i    int
}

func (c *clause) more() bool { return c.i < len(c.s) }

func (c *clause) peek() byte { return c.s[c.i] }

func (c *clause) fail(code ErrorCode, msg string, from int) {
	if from > len(c.s) {
		from = len(c.s)
	}
	c.p.report(code, msg, c.s[from:], c.base+from)
}

// bracketValue reads a bracket at the cursor and resolves it. ok is false
// when the bracket was malformed or unresolvable; the problem has already
// been reported.
func (c *clause) bracketValue() (float64, bool) {
	start := c.i
	content, next, status := readBracket(c.s, c.i)
	c.i = next
	switch status {
	case bracketUnmatched:
		c.fail(CodeUnmatchedBracket, "no closing bracket", start)
		return 0, false
	case bracketEmpty:
		c.fail(CodeEmptyBracket, "empty bracket ignored", start)
		return 0, false
	}
	return c.p.resolveAt(content, c.base+start)
}

// number reads digits or a bracketed value. present is false when neither
// starts at the cursor.
func (c *clause) number() (v float64, present, ok bool) {
	if !c.more() {
		return 0, false, false
	}
	if c.peek() == '[' {
		v, ok := c.bracketValue()
		return v, true, ok
	}
	start := c.i
	for c.more() && isDigit(c.peek()) {
		c.i++
	}
	if start == c.i {
		return 0, false, false
	}
	v, ok = parseNumber(c.s[start:c.i])
	return v, true, ok
}

func (p *Parser) parseNote(el scan.Element, tokenOffset int) (Note, bool) {
	c := &clause{p: p, s: el.Text, base: tokenOffset + el.Offset}
	n := Note{
		Octave:    p.ctx.Octave,
		TupletNum: 1,
		TupletDen: 1,
		Attack:    p.ctx.Attack,
		Decay:     p.ctx.Decay,
	}
	if !c.more() {
		p.report(CodeUnknownToken, "empty note clause", "", c.base)
		return n, false
	}

	var letter byte
	head := lower(c.peek())
	offset, isLetter := noteOffsets[head]
	switch {
	case head == 'r':
		n.Rest = true
		c.i++
	case isLetter:
		letter = head
		n.PitchClass = offset
		c.i++
	case head == '[':
		v, ok := c.bracketValue()
		if !ok {
			p.report(CodeUnknownToken, "unresolved note value", c.s, c.base)
			return n, false
		}
		n.Raw = true
		n.Value = roundClamp(v, 0, 127)
	default:
		p.report(CodeUnknownToken, "unrecognized note head", c.s, c.base)
		return n, false
	}

	if letter != 0 {
		c.pitch(&n, letter)
	}
	c.duration(&n)
	c.tuplet(&n)
	if n.Duration > MaxDuration {
		p.report(CodeBadNumber, "duration too long, clamped", c.s, c.base)
		n.Duration = MaxDuration
	}
	c.velocity(&n)
	if c.more() {
		c.fail(CodeTrailingCharacters, "ignored trailing characters", c.i)
	}
	return n, true
}

func (c *clause) pitch(n *Note, letter byte) {
	explicit := false
	accidentals := 0
accidentals:
	for c.more() {
		switch c.peek() {
		case '#':
			accidentals++
		case 'b', 'B':
			accidentals--
		case 'n', 'N':
			accidentals = 0
		default:
			break accidentals
		}
		explicit = true
		c.i++
	}
	if !explicit {
		accidentals = keyAdjust(c.p.ctx.Key, letter)
	}
	n.Accidentals = accidentals

	if c.more() && isDigit(c.peek()) {
		start := c.i
		oct := int(c.peek() - '0')
		c.i++
		if c.more() && isDigit(c.peek()) {
			if two := oct*10 + int(c.peek()-'0'); two <= c.p.cfg.MaxOctave {
				oct = two
				c.i++
			}
		}
		if oct > c.p.cfg.MaxOctave {
			c.fail(CodeBadNumber, "octave out of range", start)
			oct = c.p.cfg.MaxOctave
		}
		c.setOctave(n, oct)
	} else if c.more() && c.peek() == '[' {
		if v, ok := c.bracketValue(); ok {
			c.setOctave(n, roundClamp(v, 0, c.p.cfg.MaxOctave))
		}
	}

	n.Value = clampInt(n.Octave*12+n.PitchClass+n.Accidentals, 0, 127)

	if intervals, next, ok := matchChord(c.s, c.i); ok {
		c.i = next
		inversions := 0
		for c.more() && c.peek() == '^' {
			inversions++
			c.i++
		}
		n.Chord = voiceChord(n.Value, intervals, inversions)
	}
}

func (c *clause) setOctave(n *Note, oct int) {
	n.Octave = oct
	if c.p.cfg.StickyDefaults {
		c.p.ctx.Octave = oct
	}
}

func (c *clause) duration(n *Note) {
	if c.more() && c.peek() == '-' {
		n.TieEnd = true
		c.i++
	}
	total := 0.0
	explicit := false
	for c.more() {
		step, ok := durationLetters[lower(c.peek())]
		if !ok {
			break
		}
		c.i++
		total += step
		explicit = true
		for c.more() && c.peek() == '.' {
			step /= 2
			total += step
			c.i++
		}
	}
	if !explicit && c.more() && c.peek() == '/' {
		start := c.i
		c.i++
		var v float64
		ok := false
		if c.more() && c.peek() == '[' {
			v, ok = c.bracketValue()
		} else {
			from := c.i
			for c.more() && (isDigit(c.peek()) || c.peek() == '.') {
				c.i++
			}
			v, ok = parseNumber(c.s[from:c.i])
			if !ok {
				c.fail(CodeBadNumber, "bad duration fraction", start)
			}
		}
		if ok && v <= 0 {
			c.fail(CodeBadNumber, "duration must be positive", start)
			ok = false
		}
		if ok {
			total = v
			explicit = true
		}
	}
	if explicit {
		n.Duration = total
		if c.p.cfg.StickyDefaults {
			c.p.ctx.Duration = total
		}
	} else {
		n.Duration = c.p.ctx.Duration
	}
	if c.more() && c.peek() == '-' {
		n.TieStart = true
		c.i++
	}
}

// tuplet applies "*", "*n:m" or a malformed ratio, which falls back to a
// triplet.
func (c *clause) tuplet(n *Note) {
	if !c.more() || c.peek() != '*' {
		return
	}
	start := c.i
	c.i++
	num, den := 3, 2

	j := c.ratioPart(c.i)
	switch {
	case j < len(c.s) && c.s[j] == ':':
		k := c.ratioPart(j + 1)
		a, errA := strconv.Atoi(c.s[c.i:j])
		b, errB := strconv.Atoi(c.s[j+1 : k])
		if errA == nil && errB == nil && a > 0 && b > 0 {
			num, den = a, b
		} else {
			c.fail(CodeBadTuplet, "malformed tuplet ratio, using 3:2", start)
		}
		c.i = k
	case j > c.i && isDigit(c.s[c.i]):
		c.fail(CodeBadTuplet, "tuplet ratio needs n:m, using 3:2", start)
		for c.more() && isDigit(c.peek()) {
			c.i++
		}
	}
	n.TupletNum, n.TupletDen = num, den
	n.Duration = n.Duration * float64(den) / float64(num)
}

// ratioPart returns the end of one tuplet ratio half starting at i: a digit
// run, or a name such as "Ding" that will fail as a number.
func (c *clause) ratioPart(i int) int {
	if i < len(c.s) && isDigit(c.s[i]) {
		for i < len(c.s) && isDigit(c.s[i]) {
			i++
		}
		return i
	}
	for i < len(c.s) && isNameByte(c.s[i]) {
		i++
	}
	return i
}

func (c *clause) velocity(n *Note) {
	for c.more() {
		kind := lower(c.peek())
		if kind != 'a' && kind != 'd' {
			return
		}
		start := c.i
		c.i++
		f, present, ok := c.number()
		if !present {
			c.fail(CodeMissingVelocity, "velocity value missing", start)
			continue
		}
		if !ok {
			continue
		}
		v := roundClamp(f, 0, 127)
		if kind == 'a' {
			n.Attack = v
		} else {
			n.Decay = v
		}
	}
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// roundClamp clamps v to lo..hi before rounding it to an int, so huge and
// infinite values land on a bound. v must not be NaN.
func roundClamp(v float64, lo, hi int) int {
	return int(math.Round(math.Max(float64(lo), math.Min(v, float64(hi)))))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
