package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"clausewise/internal/completion"
	"clausewise/internal/domain"
)

// ParseAnalysis validates model output against the analysis shape. Each of
// keyInsights, potentialIssues and recommendations must be a string array or
// a {summary, points} object. An unreadable financialTerms section is dropped.
// Every failure wraps domain.ErrInvalidAnalysis.
func ParseAnalysis(text string) (*domain.AnalysisResult, error) {
	body := extractJSONObject(completion.StripCodeFences(text))
	if body == "" {
		return nil, fmt.Errorf("%w: response contains no JSON object", domain.ErrInvalidAnalysis)
	}

	var raw struct {
		KeyInsights     json.RawMessage `json:"keyInsights"`
		PotentialIssues json.RawMessage `json:"potentialIssues"`
		Recommendations json.RawMessage `json:"recommendations"`
		FinancialTerms  json.RawMessage `json:"financialTerms"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAnalysis, err)
	}

	result := &domain.AnalysisResult{}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *domain.Category
	}{
		{"keyInsights", raw.KeyInsights, &result.KeyInsights},
		{"potentialIssues", raw.PotentialIssues, &result.PotentialIssues},
		{"recommendations", raw.Recommendations, &result.Recommendations},
	}
	for _, f := range fields {
		if len(f.raw) == 0 || string(f.raw) == "null" {
			return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidAnalysis, f.name)
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidAnalysis, f.name, err)
		}
	}

	if len(raw.FinancialTerms) > 0 && string(raw.FinancialTerms) != "null" {
		var ft domain.FinancialTerms
		if err := json.Unmarshal(raw.FinancialTerms, &ft); err == nil {
			result.FinancialTerms = &ft
		}
	}
	return result, nil
}

// extractJSONObject returns the outermost {...} span, tolerating prose around it.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
