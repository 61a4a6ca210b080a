package tokens_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/tokens"
)

func TestEstimate_RoundsUp(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exactly four", "abcd", 1},
		{"five chars", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
		{"multibyte counts characters", "ééééé", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokens.Estimate(tt.text))
		})
	}
}

func TestEstimate_DependsOnlyOnLength(t *testing.T) {
	a := strings.Repeat("x", 401)
	b := strings.Repeat("The. ", 80) + "z"
	require.Equal(t, len(a), len(b))
	assert.Equal(t, tokens.Estimate(a), tokens.Estimate(b))
	assert.Equal(t, tokens.Estimate(a), tokens.Estimate(a))
}

func TestCharEstimator_MatchesEstimate(t *testing.T) {
	var est tokens.Estimator = tokens.CharEstimator{}
	assert.Equal(t, tokens.Estimate("hello world"), est.Count("hello world"))
}

func TestTiktokenEstimator_NilFallsBackToChars(t *testing.T) {
	var est *tokens.TiktokenEstimator
	assert.Equal(t, 3, est.Count("hello world"))
}

func TestFromName(t *testing.T) {
	est, err := tokens.FromName("chars")
	require.NoError(t, err)
	assert.IsType(t, tokens.CharEstimator{}, est)

	est, err = tokens.FromName("")
	require.NoError(t, err)
	assert.IsType(t, tokens.CharEstimator{}, est)

	est, err = tokens.FromName("words")
	var unknown *tokens.UnknownEstimatorError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "words", unknown.Name)
	assert.IsType(t, tokens.CharEstimator{}, est)
}
