package completion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clausewise/internal/completion"
	"clausewise/internal/domain"
	"clausewise/internal/port"
	"clausewise/mocks"
)

func TestCall_NilClientIsFatal(t *testing.T) {
	_, err := completion.Call(context.Background(), nil, port.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCompletionUnconfigured)
	assert.Equal(t, completion.KindFatal, completion.KindOf(err))
}

func TestCall_Success(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	req := port.CompletionRequest{UserPrompt: "hi", Timeout: time.Second}
	client.On("Complete", mock.Anything, req).Return(&port.CompletionResponse{Text: "hello", Model: "m"}, nil)

	resp, err := completion.Call(context.Background(), client, req)

	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	client.AssertExpectations(t)
}

func TestCall_PassesDeadlineToProvider(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	req := port.CompletionRequest{UserPrompt: "hi", Timeout: time.Minute}
	client.On("Complete", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Minute
	}), req).Return(&port.CompletionResponse{Text: "ok"}, nil)

	_, err := completion.Call(context.Background(), client, req)

	require.NoError(t, err)
	client.AssertExpectations(t)
}

// stuckClient ignores its context, like a provider that never self-times-out.
type stuckClient struct {
	release chan struct{}
}

func (s *stuckClient) Complete(_ context.Context, _ port.CompletionRequest) (*port.CompletionResponse, error) {
	<-s.release
	return &port.CompletionResponse{Text: "late"}, nil
}

func TestCall_TimeoutEnforcedWhenProviderHangs(t *testing.T) {
	client := &stuckClient{release: make(chan struct{})}
	defer close(client.release)

	start := time.Now()
	_, err := completion.Call(context.Background(), client, port.CompletionRequest{Timeout: 20 * time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, completion.KindTimeout, completion.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCall_ProviderDeadlineErrorBecomesTimeout(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	req := port.CompletionRequest{Timeout: 10 * time.Millisecond}
	client.On("Complete", mock.Anything, req).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, completion.NewError(completion.KindTransient, "openai", context.DeadlineExceeded))

	_, err := completion.Call(context.Background(), client, req)

	require.Error(t, err)
	assert.Equal(t, completion.KindTimeout, completion.KindOf(err))
}

func TestCall_ParentCancellationIsNotATimeout(t *testing.T) {
	client := &stuckClient{release: make(chan struct{})}
	defer close(client.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := completion.Call(ctx, client, port.CompletionRequest{Timeout: time.Minute})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, completion.KindFatal, completion.KindOf(err))
}

func TestCall_PreservesProviderClassification(t *testing.T) {
	client := new(mocks.MockCompletionClient)
	req := port.CompletionRequest{UserPrompt: "x", Timeout: time.Second}
	client.On("Complete", mock.Anything, req).Return(nil, completion.NewError(completion.KindFatal, "claude", errors.New("invalid api key")))

	_, err := completion.Call(context.Background(), client, req)

	assert.Equal(t, completion.KindFatal, completion.KindOf(err))
}

type panickingClient struct{}

func (panickingClient) Complete(context.Context, port.CompletionRequest) (*port.CompletionResponse, error) {
	panic("boom")
}

func TestCall_PanicBecomesFatal(t *testing.T) {
	_, err := completion.Call(context.Background(), panickingClient{}, port.CompletionRequest{Timeout: time.Second})

	require.Error(t, err)
	assert.Equal(t, completion.KindFatal, completion.KindOf(err))
	assert.Contains(t, err.Error(), "boom")
}
