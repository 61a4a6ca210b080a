// Package summarizer drives the large-document analysis pipeline: chunk the
// contract, summarize each chunk, condense the combined summary when it is too
// large, then request and validate a structured JSON analysis.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"clausewise/internal/chunker"
	"clausewise/internal/completion"
	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/port"
	"clausewise/internal/retry"
)

// State is a pipeline stage, logged on every transition.
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateChunking           State = "chunking"
	StateSummarizingChunks  State = "summarizing_chunks"
	StateCombining          State = "combining"
	StateCondensing         State = "condensing"
	StateFinalAnalysis      State = "final_analysis"
	StateValidatingAnalysis State = "validating_analysis"
	StateComplete           State = "complete"
	StateErrored            State = "errored"
)

const eventBuffer = 16

var errInternal = errors.New("internal error")

// Orchestrator runs the pipeline against a shared completion client. It keeps
// no per-request state, so one instance serves concurrent requests.
type Orchestrator struct {
	client   port.CompletionClient
	opts     Options
	retry    *retry.Controller
	splitter *chunker.Splitter
	log      *logger.Logger
}

// New creates an Orchestrator. A nil client is allowed; Validate then reports
// domain.ErrCompletionUnconfigured.
func New(client port.CompletionClient, opts Options, log *logger.Logger) *Orchestrator {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		client: client,
		opts:   opts,
		retry: retry.New(opts.Retry,
			retry.WithSleeper(opts.Sleeper),
			retry.WithLogger(log),
		),
		splitter: chunker.New(opts.Estimator),
		log:      log,
	}
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Validate reports input problems that fail a request before streaming starts.
func (o *Orchestrator) Validate(doc domain.Document) error {
	if o.client == nil {
		return domain.ErrCompletionUnconfigured
	}
	if doc.Type != "" && !domain.ValidDocumentTypes[doc.Type] {
		return domain.ErrUnsupportedDocType
	}
	if strings.TrimSpace(doc.Content) == "" {
		return domain.ErrEmptyContent
	}
	return nil
}

type outcome struct {
	summary  string
	analysis *domain.AnalysisResult
	run      domain.RunInfo
}

// Run starts the pipeline and returns its events. The channel carries status
// and progress events followed by exactly one complete or error event, then
// closes. If ctx is cancelled the pipeline stops and the channel closes
// without waiting for a reader.
func (o *Orchestrator) Run(ctx context.Context, doc domain.Document) <-chan domain.ProgressEvent {
	events := make(chan domain.ProgressEvent, eventBuffer)
	go o.run(ctx, doc, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, doc domain.Document, events chan<- domain.ProgressEvent) {
	defer close(events)

	log := o.log.With("document", doc.Name, "document_type", string(doc.Type))
	emit := func(ev domain.ProgressEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	out, err := o.execute(ctx, doc, log, emit)
	if err != nil {
		log.Warn("analysis failed", "state", string(StateErrored), "error", err)
		emit(domain.ErrorEvent(userMessage(err)))
		return
	}
	log.Info("analysis complete",
		"state", string(StateComplete),
		"chunks", out.run.ChunkCount,
		"condensed", out.run.Condensed,
		"model", out.run.Model,
	)
	run := out.run
	emit(domain.CompleteEvent(out.summary, out.analysis, &run))
}

// execute runs every stage. A panic in any stage is returned as an error so
// the caller still emits its single terminal event.
func (o *Orchestrator) execute(ctx context.Context, doc domain.Document, log *logger.Logger, emit func(domain.ProgressEvent)) (out *outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", "panic", r)
			out, err = nil, fmt.Errorf("%w: %v", errInternal, r)
		}
	}()

	transition := func(s State) { log.Debug("analysis state", "state", string(s)) }

	transition(StateValidating)
	if err := o.Validate(doc); err != nil {
		return nil, err
	}

	budgetCtx, cancel := context.WithTimeout(ctx, o.opts.RequestBudget)
	defer cancel()

	transition(StateChunking)
	chunks := o.splitter.Split(doc.Content, o.opts.ChunkTokens)
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyContent
	}
	emit(domain.StatusEvent(fmt.Sprintf("Split document into %d %s", len(chunks), plural(len(chunks), "chunk"))))

	transition(StateSummarizingChunks)
	summaries, err := o.summarizeChunks(budgetCtx, doc, chunks, log, emit)
	if err != nil {
		return nil, o.budgetError(ctx, budgetCtx, err)
	}

	transition(StateCombining)
	final := strings.Join(summaries, "\n\n")

	condensed := false
	if o.opts.Estimator.Count(final) > o.opts.CondenseThreshold {
		transition(StateCondensing)
		final, err = o.condense(budgetCtx, final, log, emit)
		if err != nil {
			return nil, o.budgetError(ctx, budgetCtx, err)
		}
		condensed = true
	}

	transition(StateFinalAnalysis)
	resp, err := o.analyze(budgetCtx, doc, final)
	if err != nil {
		return nil, o.budgetError(ctx, budgetCtx, err)
	}

	transition(StateValidatingAnalysis)
	analysis, err := ParseAnalysis(resp.Text)
	if err != nil {
		return nil, err
	}

	return &outcome{
		summary:  final,
		analysis: analysis,
		run: domain.RunInfo{
			ChunkCount: len(chunks),
			Condensed:  condensed,
			Model:      resp.Model,
		},
	}, nil
}

func (o *Orchestrator) summarizeChunks(ctx context.Context, doc domain.Document, chunks []string, log *logger.Logger, emit func(domain.ProgressEvent)) ([]string, error) {
	total := len(chunks)
	summaries := make([]string, 0, total)
	for i, chunk := range chunks {
		if i > 0 {
			if err := o.retry.Sleep(ctx, o.opts.PacingDelay); err != nil {
				return nil, err
			}
		}
		req := port.CompletionRequest{
			SystemPrompt:    chunkSystemPrompt,
			UserPrompt:      chunkPrompt(doc.Name, i, total, chunk),
			MaxOutputTokens: o.opts.SummaryOutputTokens,
			Temperature:     o.opts.SummaryTemperature,
			Timeout:         o.opts.CallTimeout,
		}
		op := fmt.Sprintf("chunk %d of %d", i+1, total)
		summary, err := o.completeWithRounds(ctx, op, req, log)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)

		percent := percentOf(i+1, total)
		emit(domain.ProgressEventAt(fmt.Sprintf("Summarized chunk %d of %d", i+1, total), percent))
	}
	return summaries, nil
}

// completeWithRounds gives one item up to MaxChunkAttempts passes through the
// retry controller, waiting ChunkRetryDelay between passes.
func (o *Orchestrator) completeWithRounds(ctx context.Context, op string, req port.CompletionRequest, log *logger.Logger) (string, error) {
	for round := 1; ; round++ {
		text, err := o.complete(ctx, op, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		if completion.KindOf(err) == completion.KindFatal {
			return "", err
		}
		if round >= o.opts.MaxChunkAttempts {
			return "", fmt.Errorf("%s gave up after %d rounds: %w: %w", op, round, domain.ErrChunkFailed, err)
		}
		log.Warn("retrying item after exhausted attempts",
			"op", op,
			"round", round,
			"max_rounds", o.opts.MaxChunkAttempts,
			"error", err,
		)
		if err := o.retry.Sleep(ctx, o.opts.ChunkRetryDelay); err != nil {
			return "", err
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, op string, req port.CompletionRequest) (string, error) {
	return retry.Value(ctx, o.retry, op, func(ctx context.Context) (string, error) {
		resp, err := completion.Call(ctx, o.client, req)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	})
}

func (o *Orchestrator) condense(ctx context.Context, combined string, log *logger.Logger, emit func(domain.ProgressEvent)) (string, error) {
	pieces := o.splitter.Split(combined, o.opts.CondenseChunkTokens)
	total := len(pieces)
	log.Info("condensing combined summary", "estimated_tokens", o.opts.Estimator.Count(combined), "pieces", total)

	condensed := make([]string, 0, total)
	for i, piece := range pieces {
		if err := o.retry.Sleep(ctx, o.opts.PacingDelay); err != nil {
			return "", err
		}
		emit(domain.StatusEvent(fmt.Sprintf("Condensing summary part %d of %d", i+1, total)))
		req := port.CompletionRequest{
			SystemPrompt:    condenseSystemPrompt,
			UserPrompt:      condensePrompt(i, total, piece),
			MaxOutputTokens: o.opts.SummaryOutputTokens,
			Temperature:     o.opts.SummaryTemperature,
			Timeout:         o.opts.CallTimeout,
		}
		text, err := o.completeWithRounds(ctx, fmt.Sprintf("condense %d of %d", i+1, total), req, log)
		if err != nil {
			return "", err
		}
		condensed = append(condensed, text)
	}
	return strings.Join(condensed, "\n\n"), nil
}

func (o *Orchestrator) analyze(ctx context.Context, doc domain.Document, summary string) (*port.CompletionResponse, error) {
	req := port.CompletionRequest{
		SystemPrompt:    analysisSystemPrompt,
		UserPrompt:      analysisPrompt(doc.Name, summary),
		MaxOutputTokens: o.opts.AnalysisOutputTokens,
		Temperature:     o.opts.AnalysisTemperature,
		JSONMode:        true,
		Timeout:         o.opts.AnalysisTimeout,
	}
	return retry.Value(ctx, o.retry, "final analysis", func(ctx context.Context) (*port.CompletionResponse, error) {
		return completion.Call(ctx, o.client, req)
	})
}

// budgetError reports an expired request budget distinctly from other failures.
func (o *Orchestrator) budgetError(parent, budgetCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(budgetCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", domain.ErrRequestBudgetExceeded, o.opts.RequestBudget, err)
	}
	return err
}

// userMessage turns a pipeline failure into the text of the error event.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyContent):
		return "Document content is empty"
	case errors.Is(err, domain.ErrCompletionUnconfigured):
		return "Analysis service is not configured"
	case errors.Is(err, domain.ErrUnsupportedDocType):
		return "Unsupported document type"
	case errors.Is(err, domain.ErrInvalidAnalysis):
		return "failed to parse analysis: " + strings.TrimPrefix(err.Error(), domain.ErrInvalidAnalysis.Error()+": ")
	case errors.Is(err, domain.ErrRequestBudgetExceeded):
		return "Analysis took too long and was stopped. Please try again later."
	case errors.Is(err, errInternal):
		return "Analysis failed due to an internal error"
	}
	switch completion.KindOf(err) {
	case completion.KindRateLimited:
		return "The AI service is rate limited right now. Please retry in a few minutes."
	case completion.KindTransient, completion.KindTimeout:
		return "The AI service could not be reached. Please retry later."
	default:
		return "Analysis failed: " + err.Error()
	}
}

func percentOf(done, total int) float64 {
	return math.Round(float64(done)/float64(total)*1000) / 10
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
