// Package stream writes and reads the newline-delimited JSON progress stream.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
)

// DefaultPingInterval keeps idle proxies from closing the connection during
// long model calls.
const DefaultPingInterval = 5 * time.Second

// ContentType is the media type of the progress stream.
const ContentType = "application/x-ndjson"

var (
	// ErrClosed is returned by Emit after the terminal event or Close.
	ErrClosed = errors.New("stream is closed")
	// ErrIncomplete is returned by Relay when the event channel closed
	// without a terminal event.
	ErrIncomplete = errors.New("event stream ended without a terminal event")
)

const incompleteMessage = "Analysis ended unexpectedly. Please try again."

// Emitter serializes progress events onto one writer. Pipeline events and
// pings share the writer, so every write holds the mutex.
type Emitter struct {
	mu         sync.Mutex
	w          io.Writer
	flusher    http.Flusher
	closer     io.Closer
	terminated bool
	closed     bool
	closeOnce  sync.Once
	closeErr   error

	pingInterval time.Duration
	log          *logger.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithPingInterval overrides DefaultPingInterval. Non-positive values disable pings.
func WithPingInterval(d time.Duration) Option {
	return func(e *Emitter) { e.pingInterval = d }
}

// WithLogger sets the emitter's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Emitter) { e.log = l }
}

// WithCloser registers the transport to close when the emitter closes.
func WithCloser(c io.Closer) Option {
	return func(e *Emitter) { e.closer = c }
}

// NewEmitter creates an Emitter writing to w. If w is an http.Flusher every
// record is flushed as soon as it is written.
func NewEmitter(w io.Writer, opts ...Option) *Emitter {
	e := &Emitter{
		w:            w,
		pingInterval: DefaultPingInterval,
		log:          logger.Nop(),
	}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit writes one event. Nothing can be written after a terminal event.
func (e *Emitter) Emit(ev domain.ProgressEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeLocked(ev)
}

func (e *Emitter) writeLocked(ev domain.ProgressEvent) error {
	if e.closed || e.terminated {
		return ErrClosed
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream: encode %s event: %w", ev.Type, err)
	}
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("stream: write %s event: %w", ev.Type, err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	if ev.IsTerminal() {
		e.terminated = true
	}
	return nil
}

// Terminated reports whether the terminal event has been written.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// Close closes the emitter and the registered transport. Safe to call more than once.
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		if e.closer != nil {
			e.closeErr = e.closer.Close()
		}
	})
	return e.closeErr
}

// Relay forwards events in order while pinging in the background, then closes
// the emitter. It returns once a terminal event is written, the channel closes,
// ctx is done, or a write fails. A channel that closes without a terminal event
// gets a synthesized error event.
func (e *Emitter) Relay(ctx context.Context, events <-chan domain.ProgressEvent) (err error) {
	defer e.Close()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("stream relay panicked", "panic", r)
			_ = e.Emit(domain.ErrorEvent(incompleteMessage))
			err = fmt.Errorf("stream: relay panicked: %v", r)
		}
	}()

	stop := e.startPings()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				e.log.Warn("event channel closed without terminal event")
				if werr := e.Emit(domain.ErrorEvent(incompleteMessage)); werr != nil {
					return errors.Join(ErrIncomplete, werr)
				}
				return ErrIncomplete
			}
			if err := e.Emit(ev); err != nil {
				return err
			}
			if ev.IsTerminal() {
				return nil
			}
		}
	}
}

// startPings runs the ping timer until the returned stop function is called.
// stop waits for the timer goroutine to exit.
func (e *Emitter) startPings() (stop func()) {
	if e.pingInterval <= 0 {
		return func() {}
	}
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if err := e.Emit(domain.PingEvent()); err != nil {
					if !errors.Is(err, ErrClosed) {
						e.log.Debug("ping failed", "error", err)
					}
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}
