// Package client calls a clausewise server and consumes its progress stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"clausewise/internal/domain"
	"clausewise/internal/stream"
)

// Submission is one contract to analyze. When File is set it is uploaded as
// multipart; otherwise Content is sent as JSON.
type Submission struct {
	Type     domain.DocumentType
	Name     string
	Content  string
	File     []byte
	Filename string
}

// RemoteError is a JSON error returned before the stream started.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// AnalysisFailedError carries the message of a terminal error event.
type AnalysisFailedError struct {
	Message string
}

func (e *AnalysisFailedError) Error() string {
	return "analysis failed: " + e.Message
}

// Client talks to the analyze endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client for baseURL. token may be empty for anonymous use.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Analyze submits s and calls fn for every event, pings included. It returns
// the complete event, an *AnalysisFailedError for an error event, or
// stream.ErrIncomplete if the connection ends without a terminal record.
func (c *Client) Analyze(ctx context.Context, s Submission, fn func(domain.ProgressEvent)) (*domain.ProgressEvent, error) {
	body, contentType, err := encode(s)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/analyze", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", stream.ContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client.Analyze: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeRemoteError(resp)
	}

	var final *domain.ProgressEvent
	err = stream.NewDecoder(resp.Body).Each(func(ev domain.ProgressEvent) error {
		if fn != nil {
			fn(ev)
		}
		if ev.IsTerminal() {
			final = &ev
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if final.Type == domain.EventError {
		return nil, &AnalysisFailedError{Message: final.Message}
	}
	return final, nil
}

func encode(s Submission) (io.Reader, string, error) {
	if s.File == nil {
		raw, err := json.Marshal(map[string]string{
			"type":    string(s.Type),
			"name":    s.Name,
			"content": s.Content,
		})
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(raw), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	filename := s.Filename
	if filename == "" {
		filename = "contract"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(s.File); err != nil {
		return nil, "", err
	}
	if s.Type != "" {
		_ = mw.WriteField("type", string(s.Type))
	}
	if s.Name != "" {
		_ = mw.WriteField("name", s.Name)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func decodeRemoteError(resp *http.Response) error {
	remote := &RemoteError{Status: resp.StatusCode}
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		remote.Code = envelope.Error.Code
		remote.Message = envelope.Error.Message
	}
	return remote
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status == http.StatusTooManyRequests || remote.Status >= 500
	}
	return errors.Is(err, stream.ErrIncomplete)
}
