package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"clausewise/internal/domain"
)

// Decoder reads progress events from an NDJSON stream. Records may arrive
// split across reads; a partial line is held until its newline arrives or the
// stream ends.
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event, skipping blank lines. It returns io.EOF after
// the last record.
func (d *Decoder) Next() (domain.ProgressEvent, error) {
	for {
		raw, readErr := d.r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return domain.ProgressEvent{}, fmt.Errorf("stream: read: %w", readErr)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			if readErr != nil {
				return domain.ProgressEvent{}, io.EOF
			}
			continue
		}
		d.line++

		var ev domain.ProgressEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return domain.ProgressEvent{}, fmt.Errorf("stream: decode record %d: %w", d.line, err)
		}
		switch ev.Type {
		case domain.EventStatus, domain.EventProgress, domain.EventComplete, domain.EventError, domain.EventPing:
		default:
			return domain.ProgressEvent{}, fmt.Errorf("stream: record %d has unknown type %q", d.line, ev.Type)
		}
		return ev, nil
	}
}

// Each calls fn for every event until the stream ends or a terminal event is
// read. It returns ErrIncomplete if the stream ends first.
func (d *Decoder) Each(fn func(domain.ProgressEvent) error) error {
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return ErrIncomplete
		}
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.IsTerminal() {
			return nil
		}
	}
}
