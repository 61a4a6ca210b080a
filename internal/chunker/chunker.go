// Package chunker splits contract text into token-bounded chunks along
// paragraph and sentence boundaries.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"clausewise/internal/tokens"
)

const (
	paragraphSeparator = "\n\n"
	sentenceSeparator  = " "
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceRun    = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)
)

// Splitter splits text using a token Estimator for sizing.
type Splitter struct {
	estimator tokens.Estimator
}

// New returns a Splitter. A nil estimator selects tokens.CharEstimator.
func New(est tokens.Estimator) *Splitter {
	if est == nil {
		est = tokens.CharEstimator{}
	}
	return &Splitter{estimator: est}
}

// Split splits text with the character-based estimate.
func Split(text string, maxTokens int) []string {
	return New(nil).Split(text, maxTokens)
}

type unit struct {
	text  string
	sep   string
	runes int
}

// Split returns the chunks of text in input order. Every chunk is trimmed and
// non-empty. A chunk exceeds maxTokens only when it is a single sentence that
// cannot be split further.
func (s *Splitter) Split(text string, maxTokens int) []string {
	var chunks []string
	var acc strings.Builder
	accRunes := 0

	flush := func() {
		if acc.Len() > 0 {
			chunks = append(chunks, acc.String())
			acc.Reset()
			accRunes = 0
		}
	}

	for _, u := range s.units(text, maxTokens) {
		if acc.Len() > 0 && s.exceeds(&acc, accRunes, u, maxTokens) {
			flush()
		}
		if acc.Len() > 0 {
			acc.WriteString(u.sep)
			accRunes += utf8.RuneCountInString(u.sep)
		}
		acc.WriteString(u.text)
		accRunes += u.runes
	}
	flush()
	return chunks
}

// exceeds reports whether appending u to the accumulator would go over budget.
// The character estimate is computed from counts so long inputs stay linear.
func (s *Splitter) exceeds(acc *strings.Builder, accRunes int, u unit, maxTokens int) bool {
	if _, ok := s.estimator.(tokens.CharEstimator); ok {
		n := accRunes + utf8.RuneCountInString(u.sep) + u.runes
		return tokens.EstimateRunes(n) > maxTokens
	}
	return s.estimator.Count(acc.String()+u.sep+u.text) > maxTokens
}

// units breaks text into paragraphs, replacing any paragraph over the budget
// with its sentences. The first sentence of a split paragraph keeps the
// paragraph separator so it can share a chunk with the preceding text.
func (s *Splitter) units(text string, maxTokens int) []unit {
	var out []unit
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if s.estimator.Count(p) <= maxTokens {
			out = append(out, unit{text: p, sep: paragraphSeparator, runes: utf8.RuneCountInString(p)})
			continue
		}
		first := true
		for _, sentence := range Sentences(p) {
			sep := sentenceSeparator
			if first {
				sep = paragraphSeparator
				first = false
			}
			out = append(out, unit{text: sentence, sep: sep, runes: utf8.RuneCountInString(sentence)})
		}
	}
	return out
}

// Sentences splits a paragraph into trimmed sentences. Text after the last
// terminator is returned as its own sentence.
func Sentences(paragraph string) []string {
	var out []string
	for _, m := range sentenceRun.FindAllString(paragraph, -1) {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
