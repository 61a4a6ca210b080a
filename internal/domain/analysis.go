package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AnalysisResult is the structured analysis produced from a contract's final summary.
type AnalysisResult struct {
	KeyInsights     Category        `json:"keyInsights"`
	PotentialIssues Category        `json:"potentialIssues"`
	Recommendations Category        `json:"recommendations"`
	FinancialTerms  *FinancialTerms `json:"financialTerms,omitempty"`
}

// Category holds one analysis section. Models return either a plain string array
// or an object with a summary and points; Structured records which shape was
// received so the same shape is emitted back to clients.
type Category struct {
	Summary    string
	Points     []string
	Structured bool
}

// PointsCategory builds a plain array-shaped category.
func PointsCategory(points ...string) Category {
	return Category{Points: points}
}

// SummaryCategory builds an object-shaped category.
func SummaryCategory(summary string, points ...string) Category {
	return Category{Summary: summary, Points: points, Structured: true}
}

type structuredCategory struct {
	Summary string   `json:"summary"`
	Points  []string `json:"points"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	points := c.Points
	if points == nil {
		points = []string{}
	}
	if !c.Structured {
		return json.Marshal(points)
	}
	return json.Marshal(structuredCategory{Summary: c.Summary, Points: points})
}

func (c *Category) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var points []string
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return fmt.Errorf("category points: %w", err)
		}
		*c = Category{Points: points}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		var raw struct {
			Summary *string          `json:"summary"`
			Points  *json.RawMessage `json:"points"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("category object: %w", err)
		}
		if raw.Points == nil {
			return fmt.Errorf("category object is missing points")
		}
		var points []string
		if err := json.Unmarshal(*raw.Points, &points); err != nil {
			return fmt.Errorf("category points: %w", err)
		}
		if points == nil {
			return fmt.Errorf("category points must be an array")
		}
		summary := ""
		if raw.Summary != nil {
			summary = *raw.Summary
		}
		*c = Category{Summary: summary, Points: points, Structured: true}
		return nil
	default:
		return fmt.Errorf("category must be an array or an object, got %s", truncateJSON(trimmed))
	}
}

// FinancialTerms captures money-related terms found in the contract.
type FinancialTerms struct {
	PropertyValue       FlexString   `json:"propertyValue"`
	PaymentSchedule     FlexString   `json:"paymentSchedule"`
	AdditionalCosts     []FlexString `json:"additionalCosts"`
	FinancialConditions []FlexString `json:"financialConditions"`
}

// FlexString decodes JSON strings, numbers and booleans as text; null decodes to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if bytes.Equal(trimmed, []byte("true")) || bytes.Equal(trimmed, []byte("false")) {
		*f = FlexString(trimmed)
		return nil
	}
	if _, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		*f = FlexString(trimmed)
		return nil
	}
	// Nested objects are kept as compact JSON text.
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return err
	}
	*f = FlexString(buf.String())
	return nil
}

func truncateJSON(b []byte) string {
	if len(b) <= 40 {
		return string(b)
	}
	return string(b[:40]) + "..."
}
