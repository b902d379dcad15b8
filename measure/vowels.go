package measure

import "strings"

// Class groups phone labels for duration bands and outlier statistics.
type Class string

const (
	ClassVowel     Class = "vowel"
	ClassConsonant Class = "consonant"
	ClassSilence   Class = "silence"
)

// arpaVowels are the ARPAbet vowel symbols without stress.
var arpaVowels = map[string]bool{
	"AA": true, "AE": true, "AH": true, "AO": true, "AW": true,
	"AY": true, "EH": true, "ER": true, "EY": true, "IH": true,
	"IY": true, "OW": true, "OY": true, "UH": true, "UW": true,
}

// IsVowel reports whether label is an ARPAbet vowel, bare or with a
// 0/1/2 stress digit.
func IsVowel(label string) bool {
	if n := len(label); n == 3 && label[2] >= '0' && label[2] <= '2' {
		label = label[:2]
	}
	return arpaVowels[label]
}

// Classifier assigns a Class to phone labels.
type Classifier struct {
	silence map[string]bool
}

// NewClassifier treats the given labels (case-insensitive, trimmed) as silence.
func NewClassifier(silenceLabels []string) Classifier {
	c := Classifier{silence: make(map[string]bool, len(silenceLabels))}
	for _, l := range silenceLabels {
		c.silence[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return c
}

func (c Classifier) Classify(label string) Class {
	switch {
	case c.silence[strings.ToLower(strings.TrimSpace(label))]:
		return ClassSilence
	case IsVowel(label):
		return ClassVowel
	default:
		return ClassConsonant
	}
}
