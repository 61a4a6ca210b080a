package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)
}

func TestNew_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "WARN", "error"} {
		l, err := New(lvl, "console")
		require.NoError(t, err, lvl)
		assert.NotNil(t, l.SugaredLogger)
	}
}

func TestLogger_RedactsCredentialKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Info("login", "email", "a@b.c", "access_token", "abc", "api_key", "sk-1", "password", "pw")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "a@b.c", fields["email"])
	assert.Equal(t, "[REDACTED]", fields["access_token"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["password"])
}

func TestLogger_WithKeepsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := (&Logger{SugaredLogger: zap.New(core).Sugar()}).With("request_id", "r-1")

	l.Warn("slow")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "r-1", logs.All()[0].ContextMap()["request_id"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("ignored", "k", "v")
	})
}
