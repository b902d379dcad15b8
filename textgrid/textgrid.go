// Package textgrid reads Praat TextGrid boundary annotations.
package textgrid

import "strings"

// Kind classifies a tier by the role it plays in an alignment.
type Kind int

const (
	KindOther Kind = iota
	KindWord
	KindPhone
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindPhone:
		return "phone"
	default:
		return "other"
	}
}

// KindOf derives the tier kind from its name, the way aligners name them
// ("words", "phones", "speaker - words", ...).
func KindOf(name string) Kind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "word"):
		return KindWord
	case strings.Contains(n, "phone"):
		return KindPhone
	default:
		return KindOther
	}
}

// Interval is one labeled span of a tier, in seconds.
type Interval struct {
	Label string
	Start float64
	End   float64
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Point is one labeled instant of a point (TextTier) tier.
type Point struct {
	Time  float64
	Label string
}

// Tier is a named track. Interval tiers fill Intervals, point tiers fill Points.
type Tier struct {
	Name      string
	Class     string // "IntervalTier" or "TextTier"
	Kind      Kind
	Start     float64
	End       float64
	Intervals []Interval
	Points    []Point
}

// IsInterval reports whether the tier holds intervals.
func (t *Tier) IsInterval() bool { return t.Class == classInterval }

// Document is a parsed TextGrid. Tiers keep their declaration order.
type Document struct {
	Start  float64
	End    float64
	Tiers  []*Tier
	byName map[string]*Tier
}

// Tier looks a tier up by its exact name.
func (d *Document) Tier(name string) (*Tier, bool) {
	t, ok := d.byName[name]
	return t, ok
}

// WordTier returns the first interval tier classified as a word tier, or nil.
func (d *Document) WordTier() *Tier { return d.firstOfKind(KindWord) }

// PhoneTier returns the first interval tier classified as a phone tier, or nil.
func (d *Document) PhoneTier() *Tier { return d.firstOfKind(KindPhone) }

func (d *Document) firstOfKind(k Kind) *Tier {
	for _, t := range d.Tiers {
		if t.Kind == k && t.IsInterval() {
			return t
		}
	}
	return nil
}
