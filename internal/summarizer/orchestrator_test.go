package summarizer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clausewise/internal/completion"
	"clausewise/internal/domain"
	"clausewise/internal/port"
	"clausewise/internal/retry"
	"clausewise/internal/summarizer"
	"clausewise/mocks"
)

const validAnalysis = `{"keyInsights":["Rent is 1000 per month"],"potentialIssues":["No cap on fees"],"recommendations":["Negotiate the fee cap"]}`

// sleepRecorder is a Sleeper that records requested waits without blocking.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func testOptions(rec *sleepRecorder) summarizer.Options {
	return summarizer.Options{
		ChunkTokens:         20000,
		CondenseThreshold:   60000,
		CondenseChunkTokens: 20000,
		MaxChunkAttempts:    5,
		ChunkRetryDelay:     2 * time.Second,
		PacingDelay:         2 * time.Second,
		CallTimeout:         time.Minute,
		AnalysisTimeout:     time.Minute,
		RequestBudget:       time.Minute,
		Retry: retry.Policy{
			MaxAttempts:       3,
			BaseDelay:         time.Second,
			RateLimitCooldown: 10 * time.Second,
		},
		Sleeper: rec.sleep,
	}
}

func collect(t *testing.T, events <-chan domain.ProgressEvent) []domain.ProgressEvent {
	t.Helper()
	var out []domain.ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
			return out
		}
	}
}

func assertSingleTerminal(t *testing.T, events []domain.ProgressEvent) domain.ProgressEvent {
	t.Helper()
	require.NotEmpty(t, events)
	terminals := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminals++
		}
	}
	require.Equal(t, 1, terminals)
	last := events[len(events)-1]
	require.True(t, last.IsTerminal(), "terminal event must be last")
	return last
}

func summaryCall() interface{} {
	return mock.MatchedBy(func(req port.CompletionRequest) bool { return !req.JSONMode })
}

func analysisCall() interface{} {
	return mock.MatchedBy(func(req port.CompletionRequest) bool { return req.JSONMode })
}

func TestRun_SingleChunk(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	client.On("Complete", mock.Anything, summaryCall()).
		Return(&port.CompletionResponse{Text: "S1", Model: "test-model"}, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req port.CompletionRequest) bool {
		return req.JSONMode && strings.Contains(req.UserPrompt, "S1")
	})).Return(&port.CompletionResponse{Text: validAnalysis, Model: "test-model"}, nil).Once()

	rec := &sleepRecorder{}
	o := summarizer.New(client, testOptions(rec), nil)

	events := collect(t, o.Run(context.Background(), domain.Document{
		Type:    domain.DocumentTypeText,
		Name:    "lease.txt",
		Content: "The tenant shall pay rent of 1000 per month.",
	}))

	require.Len(t, events, 3)
	assert.Equal(t, domain.StatusEvent("Split document into 1 chunk"), events[0])
	assert.Equal(t, domain.EventProgress, events[1].Type)
	require.NotNil(t, events[1].Progress)
	assert.Equal(t, 100.0, *events[1].Progress)

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventComplete, done.Type)
	assert.Equal(t, "S1", done.Summary)
	require.NotNil(t, done.Analysis)
	assert.Equal(t, []string{"Rent is 1000 per month"}, done.Analysis.KeyInsights.Points)
	require.NotNil(t, done.Run)
	assert.Equal(t, 1, done.Run.ChunkCount)
	assert.False(t, done.Run.Condensed)
	assert.Equal(t, "test-model", done.Run.Model)

	assert.Empty(t, rec.recorded(), "no pacing before the first chunk")
	client.AssertExpectations(t)
}

func TestRun_ProgressAcrossChunks(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	client.On("Complete", mock.Anything, summaryCall()).
		Return(&port.CompletionResponse{Text: "part summary"}, nil).Times(3)
	client.On("Complete", mock.Anything, analysisCall()).
		Return(&port.CompletionResponse{Text: validAnalysis}, nil).Once()

	rec := &sleepRecorder{}
	opts := testOptions(rec)
	opts.ChunkTokens = 12
	o := summarizer.New(client, opts, nil)

	content := strings.Join([]string{
		"The landlord keeps the deposit in escrow.",
		"The tenant pays rent on the first day.",
		"Either party may end it with notice.",
	}, "\n\n")
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: content}))

	var progress []float64
	for _, ev := range events {
		if ev.Type == domain.EventProgress {
			progress = append(progress, *ev.Progress)
		}
	}
	assert.Equal(t, []float64{33.3, 66.7, 100}, progress)
	assert.Equal(t, domain.StatusEvent("Split document into 3 chunks"), events[0])

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventComplete, done.Type)
	assert.Equal(t, "part summary\n\npart summary\n\npart summary", done.Summary)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.recorded())
	client.AssertExpectations(t)
}

// scriptedClient answers by prompt kind and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	requests []port.CompletionRequest
	condense int
}

func (c *scriptedClient) Complete(_ context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	switch {
	case req.JSONMode:
		return &port.CompletionResponse{Text: "```json\n" + validAnalysis + "\n```", Model: "m"}, nil
	case strings.HasPrefix(req.UserPrompt, "Summary section"):
		c.condense++
		return &port.CompletionResponse{Text: "condensed " + string(rune('0'+c.condense)), Model: "m"}, nil
	default:
		return &port.CompletionResponse{Text: "Rent is due monthly. Deposit is refundable. Notice is thirty days.", Model: "m"}, nil
	}
}

func TestRun_CondensesLargeSummary(t *testing.T) {
	client := &scriptedClient{}
	rec := &sleepRecorder{}
	opts := testOptions(rec)
	opts.ChunkTokens = 10
	opts.CondenseThreshold = 20
	opts.CondenseChunkTokens = 17
	o := summarizer.New(client, opts, nil)

	content := "Section one covers rent and fees.\n\nSection two covers the deposit."
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: content}))

	done := assertSingleTerminal(t, events)
	require.Equal(t, domain.EventComplete, done.Type, "got %+v", done)
	assert.Equal(t, "condensed 1\n\ncondensed 2", done.Summary)
	assert.True(t, done.Run.Condensed)
	assert.Equal(t, 2, done.Run.ChunkCount)

	assert.Contains(t, events, domain.StatusEvent("Condensing summary part 1 of 2"))
	assert.Contains(t, events, domain.StatusEvent("Condensing summary part 2 of 2"))

	last := client.requests[len(client.requests)-1]
	require.True(t, last.JSONMode)
	assert.Contains(t, last.UserPrompt, "condensed 1\n\ncondensed 2")
	assert.NotContains(t, last.UserPrompt, "Rent is due monthly")

	// One pacing wait between the chunks, then one before each condense call.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, rec.recorded())
}

func TestRun_InvalidAnalysisJSON(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	client.On("Complete", mock.Anything, summaryCall()).
		Return(&port.CompletionResponse{Text: "S1"}, nil).Once()
	client.On("Complete", mock.Anything, analysisCall()).
		Return(&port.CompletionResponse{Text: "This is not JSON"}, nil).Once()

	o := summarizer.New(client, testOptions(&sleepRecorder{}), nil)
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventError, done.Type)
	assert.Contains(t, done.Message, "failed to parse analysis")
	client.AssertExpectations(t)
}

func TestRun_TransientFailuresThenSuccess(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	transient := completion.NewError(completion.KindTransient, "test", errors.New("503 service unavailable"))
	client.On("Complete", mock.Anything, summaryCall()).Return(nil, transient).Twice()
	client.On("Complete", mock.Anything, summaryCall()).
		Return(&port.CompletionResponse{Text: "S1"}, nil).Once()
	client.On("Complete", mock.Anything, analysisCall()).
		Return(&port.CompletionResponse{Text: validAnalysis}, nil).Once()

	rec := &sleepRecorder{}
	o := summarizer.New(client, testOptions(rec), nil)
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	progress := 0
	for _, ev := range events {
		if ev.Type == domain.EventProgress {
			progress++
		}
	}
	assert.Equal(t, 1, progress)
	assert.Equal(t, domain.EventComplete, assertSingleTerminal(t, events).Type)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
	client.AssertNumberOfCalls(t, "Complete", 4)
}

func TestRun_FatalFailureStopsImmediately(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	fatal := completion.NewError(completion.KindFatal, "test", errors.New("400 invalid model"))
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, fatal)

	rec := &sleepRecorder{}
	o := summarizer.New(client, testOptions(rec), nil)
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventError, done.Type)
	assert.Contains(t, done.Message, "Analysis failed")
	assert.Contains(t, done.Message, "invalid model")
	assert.Empty(t, rec.recorded())
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestRun_GivesUpAfterChunkRounds(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	transient := completion.NewError(completion.KindTransient, "test", errors.New("502 bad gateway"))
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, transient)

	rec := &sleepRecorder{}
	opts := testOptions(rec)
	opts.MaxChunkAttempts = 2
	opts.Retry.MaxAttempts = 2
	o := summarizer.New(client, opts, nil)
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventError, done.Type)
	assert.Contains(t, done.Message, "could not be reached")
	client.AssertNumberOfCalls(t, "Complete", 4)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, rec.recorded())
}

func TestRun_RateLimitedEverywhere(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return(nil, completion.NewRateLimitError("test", errors.New("429"), 30))

	rec := &sleepRecorder{}
	opts := testOptions(rec)
	opts.MaxChunkAttempts = 1
	o := summarizer.New(client, opts, nil)
	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	done := assertSingleTerminal(t, events)
	assert.Contains(t, done.Message, "rate limited")
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.recorded())
}

// blockingClient waits for its context to end.
type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ port.CompletionRequest) (*port.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRun_RequestBudgetExceeded(t *testing.T) {
	rec := &sleepRecorder{}
	opts := testOptions(rec)
	opts.RequestBudget = 50 * time.Millisecond
	o := summarizer.New(blockingClient{}, opts, nil)

	events := collect(t, o.Run(context.Background(), domain.Document{Name: "lease", Content: "Short lease."}))

	done := assertSingleTerminal(t, events)
	assert.Equal(t, domain.EventError, done.Type)
	assert.Contains(t, done.Message, "took too long")
}

func TestRun_CancelledContextClosesStream(t *testing.T) {
	o := summarizer.New(blockingClient{}, testOptions(&sleepRecorder{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := o.Run(ctx, domain.Document{Name: "lease", Content: "Short lease."})
	cancel()

	collect(t, events)
}

func TestRun_ValidationFailureIsSingleErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		client  port.CompletionClient
		doc     domain.Document
		message string
	}{
		{"no client", nil, domain.Document{Content: "text"}, "Analysis service is not configured"},
		{"empty content", &scriptedClient{}, domain.Document{Content: " \n\t "}, "Document content is empty"},
		{"bad type", &scriptedClient{}, domain.Document{Type: "docx", Content: "text"}, "Unsupported document type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := summarizer.New(tt.client, testOptions(&sleepRecorder{}), nil)
			events := collect(t, o.Run(context.Background(), tt.doc))
			require.Len(t, events, 1)
			assert.Equal(t, domain.ErrorEvent(tt.message), events[0])
		})
	}
}

func TestValidate(t *testing.T) {
	o := summarizer.New(&scriptedClient{}, summarizer.Options{}, nil)

	assert.NoError(t, o.Validate(domain.Document{Type: domain.DocumentTypePDF, Content: "x"}))
	assert.NoError(t, o.Validate(domain.Document{Content: "x"}))
	assert.ErrorIs(t, o.Validate(domain.Document{Content: ""}), domain.ErrEmptyContent)
	assert.ErrorIs(t, o.Validate(domain.Document{Type: "rtf", Content: "x"}), domain.ErrUnsupportedDocType)

	unconfigured := summarizer.New(nil, summarizer.Options{}, nil)
	assert.ErrorIs(t, unconfigured.Validate(domain.Document{Content: "x"}), domain.ErrCompletionUnconfigured)
}
