// Package tokens approximates how many model tokens a piece of text consumes.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the divisor used by the character-based estimate.
const CharsPerToken = 4

// DefaultEncoding is the tiktoken encoding used by TiktokenEstimator.
const DefaultEncoding = "cl100k_base"

// Estimator counts tokens for sizing decisions. Implementations may under- or
// over-estimate; callers must tolerate either.
type Estimator interface {
	Count(text string) int
}

// Estimate returns ceil(len(text)/4), where len counts characters.
func Estimate(text string) int {
	return EstimateRunes(utf8.RuneCountInString(text))
}

// EstimateRunes is Estimate for a text of n characters.
func EstimateRunes(n int) int {
	return (n + CharsPerToken - 1) / CharsPerToken
}

// CharEstimator is the default Estimator backed by Estimate.
type CharEstimator struct{}

func (CharEstimator) Count(text string) int {
	return Estimate(text)
}

// TiktokenEstimator counts tokens with a real BPE encoding.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

// NewTiktoken loads the default encoding.
func NewTiktoken() (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

// Count falls back to the character estimate when no encoding is loaded.
func (e *TiktokenEstimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return Estimate(text)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(text, nil, nil))
}

// FromName returns the estimator configured by name ("chars" or "tiktoken").
// An unknown name or a tiktoken load failure yields CharEstimator and a non-nil error.
func FromName(name string) (Estimator, error) {
	switch name {
	case "", "chars":
		return CharEstimator{}, nil
	case "tiktoken":
		est, err := NewTiktoken()
		if err != nil {
			return CharEstimator{}, err
		}
		return est, nil
	default:
		return CharEstimator{}, &UnknownEstimatorError{Name: name}
	}
}

// UnknownEstimatorError reports an unrecognised estimator name.
type UnknownEstimatorError struct {
	Name string
}

func (e *UnknownEstimatorError) Error() string {
	return "unknown token counter: " + e.Name
}
