package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/client"
	"clausewise/internal/domain"
	"clausewise/internal/stream"
)

func TestAnalyze_JSONSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/analyze", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text", body["type"])
		assert.Equal(t, "rent terms", body["content"])

		w.Header().Set("Content-Type", stream.ContentType)
		_, _ = io.WriteString(w, `{"type":"status","message":"Split document into 1 chunk"}`+"\n")
		_, _ = io.WriteString(w, `{"type":"ping"}`+"\n")
		_, _ = io.WriteString(w, `{"type":"complete","summary":"ok","analysis":{"keyInsights":[],"potentialIssues":[],"recommendations":[]}}`+"\n")
	}))
	defer srv.Close()

	var seen []domain.EventType
	final, err := client.New(srv.URL, "tok", srv.Client()).Analyze(context.Background(),
		client.Submission{Type: domain.DocumentTypeText, Content: "rent terms"},
		func(ev domain.ProgressEvent) { seen = append(seen, ev.Type) },
	)

	require.NoError(t, err)
	assert.Equal(t, "ok", final.Summary)
	assert.Equal(t, []domain.EventType{domain.EventStatus, domain.EventPing, domain.EventComplete}, seen)
}

func TestAnalyze_MultipartSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "lease.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		assert.Equal(t, "pdf", r.FormValue("type"))

		_, _ = io.WriteString(w, `{"type":"error","message":"Rate limit reached. Please wait a moment and try again."}`+"\n")
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, "", nil).Analyze(context.Background(),
		client.Submission{Type: domain.DocumentTypePDF, File: []byte("%PDF-1.4"), Filename: "lease.pdf"},
		nil,
	)

	var failed *client.AnalysisFailedError
	require.True(t, errors.As(err, &failed))
	assert.Contains(t, failed.Message, "Rate limit")
}

func TestAnalyze_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":{"code":"EMPTY_CONTENT","message":"document content is empty"}}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, "", nil).Analyze(context.Background(), client.Submission{Content: " "}, nil)

	var remote *client.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Equal(t, "EMPTY_CONTENT", remote.Code)
	assert.False(t, client.IsRetryable(err))
}

func TestAnalyze_StreamEndsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"status","message":"Split document into 3 chunks"}`+"\n")
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, "", nil).Analyze(context.Background(), client.Submission{Content: "x"}, nil)

	assert.ErrorIs(t, err, stream.ErrIncomplete)
	assert.True(t, client.IsRetryable(err))
}
