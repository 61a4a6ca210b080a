package domain

import (
	"encoding/json"
	"fmt"
)

// ProgressEvent is one record of the analysis progress stream.
type ProgressEvent struct {
	Type     EventType       `json:"type"`
	Message  string          `json:"message,omitempty"`
	Progress *float64        `json:"progress,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`

	// Run carries pipeline metadata for the complete event; never serialized.
	Run *RunInfo `json:"-"`
}

// RunInfo describes how a completed analysis was produced.
type RunInfo struct {
	ChunkCount int
	Condensed  bool
	Model      string
}

// StatusEvent creates a status event.
func StatusEvent(msg string) ProgressEvent {
	return ProgressEvent{Type: EventStatus, Message: msg}
}

// ProgressEventAt creates a progress event with a percentage in [0, 100].
func ProgressEventAt(msg string, percent float64) ProgressEvent {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return ProgressEvent{Type: EventProgress, Message: msg, Progress: &percent}
}

// CompleteEvent creates the terminal success event.
func CompleteEvent(summary string, analysis *AnalysisResult, run *RunInfo) ProgressEvent {
	return ProgressEvent{Type: EventComplete, Summary: summary, Analysis: analysis, Run: run}
}

// ErrorEvent creates the terminal failure event.
func ErrorEvent(msg string) ProgressEvent {
	return ProgressEvent{Type: EventError, Message: msg}
}

// PingEvent creates a liveness event.
func PingEvent() ProgressEvent {
	return ProgressEvent{Type: EventPing}
}

// IsTerminal reports whether the event ends the stream.
func (e ProgressEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// MarshalJSON emits exactly the fields of the event's wire shape.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStatus, EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	case EventProgress:
		var p float64
		if e.Progress != nil {
			p = *e.Progress
		}
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Message  string    `json:"message"`
			Progress float64   `json:"progress"`
		}{e.Type, e.Message, p})
	case EventComplete:
		return json.Marshal(struct {
			Type     EventType       `json:"type"`
			Summary  string          `json:"summary"`
			Analysis *AnalysisResult `json:"analysis"`
		}{e.Type, e.Summary, e.Analysis})
	case EventPing:
		return []byte(`{"type":"ping"}`), nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}
