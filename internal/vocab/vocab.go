// Package vocab corrects domain vocabulary in word-level transcripts using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// Call-center transcripts routinely garble product names, company terms, and
// campaign codes ("pay flex" for "PayFlex"). The corrector tests each word
// token against a configured term list in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the token and for each term. A term whose code set overlaps the token's
//     becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity wins, provided it clears the phonetic
//     threshold. With no phonetic candidate, a pure similarity pass applies a
//     stricter fuzzy threshold.
//
// Correction happens before turn grouping so rendered transcripts and the
// analysis prompt both see the fixed spelling. Token timing, speaker, and
// confidence are never touched.
package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/callsight/callsight/pkg/provider/stt"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultConfidenceCeiling = 0.95
)

// Option is a functional option for configuring a Corrector.
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate is found and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// WithConfidenceCeiling sets the STT word confidence at or above which a token
// is trusted as-is and skipped. Tokens with zero confidence (not reported by
// the provider) are always eligible. Default: 0.95.
func WithConfidenceCeiling(ceiling float64) Option {
	return func(c *Corrector) {
		c.confidenceCeiling = ceiling
	}
}

// Correction records one replacement made by Apply.
type Correction struct {
	// Original is the token text as transcribed.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Score is the Jaro-Winkler similarity that won the match.
	Score float64

	// StartMS locates the corrected token in the recording.
	StartMS int64
}

// term is one vocabulary entry with its phonetic codes precomputed.
type term struct {
	display string
	lower   string
	codes   map[string]struct{}
}

// Corrector matches word tokens against a fixed vocabulary. It is read-only
// after construction and safe for concurrent use.
type Corrector struct {
	terms             []term
	phoneticThreshold float64
	fuzzyThreshold    float64
	confidenceCeiling float64
}

// New builds a Corrector for the given vocabulary. Blank terms are dropped;
// a nil or empty vocabulary yields a Corrector whose Apply is a no-op.
func New(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		confidenceCeiling: defaultConfidenceCeiling,
	}
	for _, o := range opts {
		o(c)
	}
	for _, v := range vocabulary {
		display := strings.TrimSpace(v)
		if display == "" {
			continue
		}
		lower := strings.ToLower(display)
		c.terms = append(c.terms, term{
			display: display,
			lower:   lower,
			codes:   codesFor(lower),
		})
	}
	return c
}

// Apply returns a copy of words with vocabulary corrections applied, plus the
// list of corrections made. Tokens whose confidence meets the ceiling, exact
// vocabulary matches, and punctuation-only tokens pass through unchanged.
func (c *Corrector) Apply(words []stt.WordToken) ([]stt.WordToken, []Correction) {
	if len(c.terms) == 0 || len(words) == 0 {
		return words, nil
	}

	out := make([]stt.WordToken, len(words))
	copy(out, words)

	var corrections []Correction
	for i := range out {
		w := &out[i]
		if w.Confidence >= c.confidenceCeiling && w.Confidence != 0 {
			continue
		}
		corrected, score, ok := c.match(w.Text)
		if !ok || corrected == w.Text {
			continue
		}
		corrections = append(corrections, Correction{
			Original:  w.Text,
			Corrected: corrected,
			Score:     score,
			StartMS:   w.StartMS,
		})
		w.Text = corrected
	}
	return out, corrections
}

// match finds the best vocabulary term for a single token.
func (c *Corrector) match(word string) (corrected string, score float64, matched bool) {
	lower := strings.ToLower(strings.Trim(word, ".,!?;:'\""))
	if lower == "" {
		return word, 0, false
	}

	wordCodes := codesFor(lower)

	var (
		best         term
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range c.terms {
		if t.lower == lower {
			// Already the canonical spelling (modulo case); leave it alone.
			return word, 0, false
		}
		phonetic := codesOverlap(wordCodes, t.codes)
		jw := matchr.JaroWinkler(lower, t.lower, false)

		if phonetic {
			if jw >= c.phoneticThreshold && (!bestPhonetic || jw > bestScore) {
				best, bestScore, bestPhonetic = t, jw, true
			}
		} else if !bestPhonetic && jw >= c.fuzzyThreshold && jw > bestScore {
			best, bestScore = t, jw
		}
	}

	if best.display == "" {
		return word, 0, false
	}
	return best.display, bestScore, true
}

// codesFor returns the Double Metaphone codes for a word. Empty codes
// (word too short or no consonants) are excluded.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
