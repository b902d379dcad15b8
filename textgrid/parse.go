package textgrid

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	classInterval = "IntervalTier"
	classPoint    = "TextTier"

	// boundaryEpsilon absorbs float noise when comparing neighbouring boundaries.
	boundaryEpsilon = 1e-9
)

// ParseError reports a structurally malformed document. Tier and Interval
// locate the failure when known (Interval is 1-based, 0 when not applicable).
type ParseError struct {
	Path     string
	Tier     string
	Interval int
	Reason   string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("textgrid")
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Tier != "" {
		fmt.Fprintf(&b, ": tier %q", e.Tier)
	}
	if e.Interval > 0 {
		fmt.Fprintf(&b, " interval %d", e.Interval)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// ParseFile reads and parses a TextGrid file. Errors are *ParseError
// unless the file could not be opened.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if pe, ok := err.(*ParseError); ok {
		pe.Path = path
	}
	return doc, err
}

// Parse reads a TextGrid in long or short text format. UTF-8 and UTF-16
// (with byte order mark) encodings are accepted.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(transform.NewReader(r, xunicode.BOMOverride(xunicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	toks, err := tokenize(string(raw))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.document()
}

type tokenKind int

const (
	tokString tokenKind = iota
	tokNumber
	tokFlag
	tokBare // unquoted word in a value position, e.g. "xmin = abc"
)

func (k tokenKind) String() string {
	switch k {
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokFlag:
		return "flag"
	default:
		return "bare word"
	}
}

type token struct {
	kind tokenKind
	text string
}

// tokenize reduces both TextGrid formats to the same value stream. Keys,
// "=", "[n]:" headers and "!" comments carry no values and are dropped.
func tokenize(s string) ([]token, error) {
	rs := []rune(s)
	var toks []token
	afterEquals := false
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
			continue
		case c == '!':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			continue
		case c == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '"' {
					if i+1 < len(rs) && rs[i+1] == '"' {
						b.WriteRune('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, &ParseError{Reason: "unterminated string"}
			}
			toks = append(toks, token{tokString, b.String()})
		case c == '[':
			for i < len(rs) && rs[i] != ']' {
				i++
			}
			i++
		case c == '<':
			j := i + 1
			for j < len(rs) && rs[j] != '>' {
				j++
			}
			if j >= len(rs) {
				return nil, &ParseError{Reason: "unterminated flag"}
			}
			toks = append(toks, token{tokFlag, string(rs[i+1 : j])})
			i = j + 1
		case isNumberStart(c):
			j := i
			for j < len(rs) && isNumberRune(rs[j]) {
				j++
			}
			kind := tokNumber
			// "1.0abc" is one malformed value, not a number followed by a key
			if j < len(rs) && (unicode.IsLetter(rs[j]) || rs[j] == '_') {
				kind = tokBare
				for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_' || isNumberRune(rs[j])) {
					j++
				}
			}
			toks = append(toks, token{kind, string(rs[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			if afterEquals {
				toks = append(toks, token{tokBare, string(rs[i:j])})
			}
			i = j
		default:
			afterEquals = c == '='
			i++
			continue
		}
		afterEquals = false
	}
	return toks, nil
}

func isNumberStart(c rune) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func isNumberRune(c rune) bool {
	return isNumberStart(c) || c == 'e' || c == 'E'
}

type parser struct {
	toks []token
	pos  int

	tier     string
	interval int
}

func (p *parser) fail(format string, args ...any) *ParseError {
	return &ParseError{Tier: p.tier, Interval: p.interval, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) next(what string) (token, error) {
	if p.pos >= len(p.toks) {
		return token{}, p.fail("unexpected end of document reading %s", what)
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *parser) str(what string) (string, error) {
	t, err := p.next(what)
	if err != nil {
		return "", err
	}
	if t.kind != tokString {
		return "", p.fail("%s: expected string, got %s %q", what, t.kind, t.text)
	}
	return t.text, nil
}

func (p *parser) number(what string) (float64, error) {
	t, err := p.next(what)
	if err != nil {
		return 0, err
	}
	if t.kind != tokNumber {
		return 0, p.fail("%s: non-numeric value %q", what, t.text)
	}
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0, p.fail("%s: non-numeric value %q", what, t.text)
	}
	return v, nil
}

func (p *parser) count(what string) (int, error) {
	v, err := p.number(what)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != float64(int(v)) {
		return 0, p.fail("%s: invalid count %v", what, v)
	}
	return int(v), nil
}

func (p *parser) document() (*Document, error) {
	fileType, err := p.str("file type")
	if err != nil {
		return nil, err
	}
	if fileType != "ooTextFile" {
		return nil, p.fail("unsupported file type %q", fileType)
	}
	class, err := p.str("object class")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(class, "TextGrid") {
		return nil, p.fail("unsupported object class %q", class)
	}

	doc := &Document{byName: make(map[string]*Tier)}
	if doc.Start, err = p.number("xmin"); err != nil {
		return nil, err
	}
	if doc.End, err = p.number("xmax"); err != nil {
		return nil, err
	}

	t, err := p.next("tiers flag")
	if err != nil {
		return nil, err
	}
	if t.kind != tokFlag {
		return nil, p.fail("tiers flag: expected <exists> or <absent>, got %q", t.text)
	}
	if t.text == "absent" {
		return doc, nil
	}

	n, err := p.count("tier count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		tier, err := p.tierBlock()
		if err != nil {
			return nil, err
		}
		if _, dup := doc.byName[tier.Name]; dup {
			return nil, &ParseError{Tier: tier.Name, Reason: "duplicate tier name"}
		}
		doc.byName[tier.Name] = tier
		doc.Tiers = append(doc.Tiers, tier)
	}
	if p.pos < len(p.toks) {
		p.tier, p.interval = "", 0
		return nil, p.fail("unexpected content after %d tiers", n)
	}
	return doc, nil
}

func (p *parser) tierBlock() (*Tier, error) {
	p.tier, p.interval = "", 0
	class, err := p.str("tier class")
	if err != nil {
		return nil, err
	}
	name, err := p.str("tier name")
	if err != nil {
		return nil, err
	}
	p.tier = name
	tier := &Tier{Name: name, Class: class, Kind: KindOf(name)}
	if tier.Start, err = p.number("tier xmin"); err != nil {
		return nil, err
	}
	if tier.End, err = p.number("tier xmax"); err != nil {
		return nil, err
	}
	n, err := p.count("interval count")
	if err != nil {
		return nil, err
	}

	switch class {
	case classInterval:
		tier.Intervals = make([]Interval, 0, n)
		for j := 1; j <= n; j++ {
			p.interval = j
			iv, err := p.intervalEntry()
			if err != nil {
				return nil, err
			}
			if err := p.checkOrder(tier, iv); err != nil {
				return nil, err
			}
			tier.Intervals = append(tier.Intervals, iv)
		}
	case classPoint:
		tier.Points = make([]Point, 0, n)
		for j := 1; j <= n; j++ {
			p.interval = j
			at, err := p.number("point time")
			if err != nil {
				return nil, err
			}
			mark, err := p.str("point mark")
			if err != nil {
				return nil, err
			}
			tier.Points = append(tier.Points, Point{Time: at, Label: mark})
		}
	default:
		return nil, p.fail("unknown tier class %q", class)
	}
	p.interval = 0
	return tier, nil
}

func (p *parser) intervalEntry() (Interval, error) {
	start, err := p.number("interval xmin")
	if err != nil {
		return Interval{}, err
	}
	end, err := p.number("interval xmax")
	if err != nil {
		return Interval{}, err
	}
	label, err := p.str("interval text")
	if err != nil {
		return Interval{}, err
	}
	if end <= start {
		return Interval{}, p.fail("end %.6f <= start %.6f", end, start)
	}
	return Interval{Label: strings.TrimSpace(label), Start: start, End: end}, nil
}

// checkOrder enforces start ordering on every tier and, on word tiers,
// the absence of overlapping words.
func (p *parser) checkOrder(tier *Tier, iv Interval) error {
	if len(tier.Intervals) == 0 {
		return nil
	}
	prev := tier.Intervals[len(tier.Intervals)-1]
	if iv.Start < prev.Start-boundaryEpsilon {
		return p.fail("start %.6f precedes previous start %.6f", iv.Start, prev.Start)
	}
	if tier.Kind == KindWord && iv.Start < prev.End-boundaryEpsilon {
		return p.fail("word overlaps previous word (%.6f < %.6f)", iv.Start, prev.End)
	}
	return nil
}
