package notation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cbegin/musicstring-go/internal/scan"
)

type (
	TraceFunc  func(p *Parser, msg string)
	ErrorFunc  func(p *Parser, err *ParseError)
	RecordFunc func(rec Record)
)

// Parser turns music strings into records. Handlers run synchronously, in
// subscription order, on the goroutine calling Parse or ParseToken.
type Parser struct {
	cfg  ParserConfig
	ctx  Context
	dict *Dictionary

	nextID   int
	traces   []traceSub
	errors   []errorSub
	records  []recordSub
	userData any
}

type traceSub struct {
	id int
	fn TraceFunc
}

type errorSub struct {
	id int
	fn ErrorFunc
}

type recordSub struct {
	id int
	fn RecordFunc
}

func NewParser(cfg ParserConfig) *Parser {
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultParserConfig().Resolution
	}
	if cfg.MaxOctave <= 0 {
		cfg.MaxOctave = DefaultParserConfig().MaxOctave
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultParserConfig().DefaultDuration
	}
	return &Parser{cfg: cfg, ctx: newContext(cfg), dict: NewDictionary()}
}

func (p *Parser) Config() ParserConfig { return p.cfg }

func (p *Parser) Context() *Context { return &p.ctx }

func (p *Parser) Dictionary() *Dictionary { return p.dict }

// SetUserData stores a value for handlers to read back through UserData.
func (p *Parser) SetUserData(v any) { p.userData = v }

func (p *Parser) UserData() any { return p.userData }

// Reset restores the default context and the seeded dictionary. Handlers
// stay subscribed.
func (p *Parser) Reset() {
	p.ctx = newContext(p.cfg)
	p.dict.reset()
}

// ResetContext restores the default context and keeps the dictionary.
func (p *Parser) ResetContext() {
	p.ctx = newContext(p.cfg)
}

func (p *Parser) OnTrace(fn TraceFunc) func() {
	p.nextID++
	id := p.nextID
	p.traces = append(p.traces, traceSub{id: id, fn: fn})
	return func() {
		for i, s := range p.traces {
			if s.id == id {
				p.traces = append(p.traces[:i:i], p.traces[i+1:]...)
				return
			}
		}
	}
}

func (p *Parser) OnError(fn ErrorFunc) func() {
	p.nextID++
	id := p.nextID
	p.errors = append(p.errors, errorSub{id: id, fn: fn})
	return func() {
		for i, s := range p.errors {
			if s.id == id {
				p.errors = append(p.errors[:i:i], p.errors[i+1:]...)
				return
			}
		}
	}
}

func (p *Parser) OnRecord(fn RecordFunc) func() {
	p.nextID++
	id := p.nextID
	p.records = append(p.records, recordSub{id: id, fn: fn})
	return func() {
		for i, s := range p.records {
			if s.id == id {
				p.records = append(p.records[:i:i], p.records[i+1:]...)
				return
			}
		}
	}
}

func (p *Parser) tracef(format string, args ...any) {
	if len(p.traces) == 0 {
		return
	}
	msg := fmt.Sprintf(format, args...)
	for _, s := range p.traces {
		s.fn(p, msg)
	}
}

func (p *Parser) report(code ErrorCode, msg, token string, offset int) {
	err := &ParseError{Code: code, Message: msg, Token: token, Offset: offset}
	p.tracef("%s", err.Error())
	for _, s := range p.errors {
		s.fn(p, err)
	}
}

func (p *Parser) emit(rec Record) {
	for _, s := range p.records {
		s.fn(rec)
	}
}

// Parse parses every token of music. It returns false if any token could
// not be classified; records of the other tokens are still emitted.
func (p *Parser) Parse(music string) bool {
	ok := true
	for _, tok := range scan.Tokens(music) {
		if !p.parseToken(tok) {
			ok = false
		}
	}
	return ok
}

// ParseToken parses the first token of text and ignores the rest.
func (p *Parser) ParseToken(text string) bool {
	tok, _, found := scan.NextToken(text, 0)
	if !found {
		p.report(CodeUnknownToken, "empty token", "", 0)
		return false
	}
	return p.parseToken(tok)
}

func (p *Parser) parseToken(tok scan.Token) bool {
	p.tracef("token %q at %d", tok.Text, tok.Offset)
	switch lower(tok.Text[0]) {
	case '$', '@', 'i', 't', 'k', 'v', 'l', 'x':
		p.parseDirective(tok)
		return true
	}
	ok := true
	for _, el := range scan.SplitElements(tok.Text) {
		n, parsed := p.parseNote(el, tok.Offset)
		if !parsed {
			ok = false
			continue
		}
		p.tracef("note %q value=%d duration=%g", el.Text, n.Value, n.Duration)
		p.emit(Record{Kind: RecordNote, Join: el.Join, Token: el.Text, Note: n})
	}
	return ok
}

// resolve reads a bracket's content as a decimal or a dictionary name.
func (p *Parser) resolve(content string) (float64, bool) {
	if v, ok := parseNumber(content); ok {
		return v, true
	}
	return p.dict.Resolve(content)
}

// parseNumber reads a decimal. Values beyond float64 range come back as
// infinities so they clamp like any other large value.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

// resolveAt resolves bracket content and reports what cannot be used as a
// number.
func (p *Parser) resolveAt(content string, offset int) (float64, bool) {
	v, ok := p.resolve(content)
	switch {
	case !ok:
		p.report(CodeUnknownMacro, "unknown macro "+content, content, offset)
		return 0, false
	case math.IsNaN(v):
		p.report(CodeBadNumber, "not a number", content, offset)
		return 0, false
	}
	return v, true
}

// value reads a directive argument: a decimal or a bracketed name.
func (p *Parser) value(s string, offset int) (float64, bool) {
	if s == "" {
		p.report(CodeBadDirective, "missing value", s, offset)
		return 0, false
	}
	if s[0] == '[' {
		content, next, status := readBracket(s, 0)
		switch {
		case status == bracketUnmatched:
			p.report(CodeUnmatchedBracket, "no closing bracket", s, offset)
			return 0, false
		case status == bracketEmpty:
			p.report(CodeEmptyBracket, "empty bracket ignored", s, offset)
			return 0, false
		case next != len(s):
			p.report(CodeTrailingCharacters, "ignored trailing characters", s[next:], offset+next)
		}
		return p.resolveAt(content, offset)
	}
	v, ok := parseNumber(s)
	if !ok || math.IsNaN(v) {
		p.report(CodeBadNumber, "bad number", s, offset)
		return 0, false
	}
	return v, true
}

func (p *Parser) intValue(s string, offset, lo, hi int) (int, bool) {
	f, ok := p.value(s, offset)
	if !ok {
		return 0, false
	}
	r := math.Round(f)
	if r < float64(lo) || r > float64(hi) {
		p.report(CodeBadDirective, fmt.Sprintf("value %g outside %d..%d", f, lo, hi), s, offset)
		return 0, false
	}
	return int(r), true
}

func (p *Parser) parseDirective(tok scan.Token) {
	text := tok.Text
	arg, argOffset := text[1:], tok.Offset+1
	d := Directive{}
	switch lower(text[0]) {
	case '$':
		eq := strings.IndexByte(arg, '=')
		if eq <= 0 || !validName(arg[:eq]) {
			p.report(CodeBadDirective, "definition needs $Name=value", text, tok.Offset)
			return
		}
		v, ok := p.value(arg[eq+1:], argOffset+eq+1)
		if !ok {
			return
		}
		p.dict.Define(arg[:eq], v)
		d = Directive{Kind: DirectiveDefine, Name: normalizeName(arg[:eq]), Float: v, Value: roundClamp(v, math.MinInt32, math.MaxInt32)}
	case 'i':
		v, ok := p.intValue(arg, argOffset, 0, 127)
		if !ok {
			return
		}
		p.ctx.Instrument = v
		d = Directive{Kind: DirectiveInstrument, Value: v}
	case 't':
		v, ok := p.intValue(arg, argOffset, 1, 1000)
		if !ok {
			return
		}
		p.ctx.Tempo = v
		d = Directive{Kind: DirectiveTempo, Value: v, Float: float64(v)}
	case 'k':
		name := arg
		if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
			name = name[1 : len(name)-1]
		}
		key, ok := lookupKey(name)
		if !ok {
			p.report(CodeBadDirective, "unknown key signature", text, tok.Offset)
			return
		}
		p.ctx.Key = key
		d = Directive{Kind: DirectiveKeySignature, Value: key, Name: strings.ToUpper(name)}
	case 'v':
		v, ok := p.intValue(arg, argOffset, 0, 15)
		if !ok {
			return
		}
		p.ctx.Voice = v
		d = Directive{Kind: DirectiveVoice, Value: v}
	case 'l':
		v, ok := p.intValue(arg, argOffset, 0, 15)
		if !ok {
			return
		}
		p.ctx.Layer = v
		d = Directive{Kind: DirectiveLayer, Value: v}
	case 'x':
		eq := strings.IndexByte(arg, '=')
		if eq <= 0 {
			p.report(CodeBadDirective, "controller needs X<n>=<value>", text, tok.Offset)
			return
		}
		cc, ok := p.intValue(arg[:eq], argOffset, 0, 127)
		if !ok {
			return
		}
		v, ok := p.intValue(arg[eq+1:], argOffset+eq+1, 0, 127)
		if !ok {
			return
		}
		d = Directive{Kind: DirectiveController, Controller: cc, Value: v}
	case '@':
		v, ok := p.intValue(arg, argOffset, 0, math.MaxInt32)
		if !ok {
			return
		}
		d = Directive{Kind: DirectiveTime, Value: v}
	}
	p.tracef("directive %s %d", d.Kind, d.Value)
	p.emit(Record{Kind: RecordDirective, Token: text, Directive: d})
}

func validName(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return s != ""
}
