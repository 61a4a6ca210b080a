package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/middleware"
	"clausewise/internal/service"
	"clausewise/internal/stream"
)

// multipartOverhead allows for form boundaries and fields around the file.
const multipartOverhead = 1 << 20

// AnalysisHandler accepts contract submissions and streams analysis progress.
type AnalysisHandler struct {
	contractService service.ContractService
	maxBytes        int64
	pingInterval    time.Duration
	log             *logger.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler. maxBytes bounds the
// decoded document; zero disables the check.
func NewAnalysisHandler(contractService service.ContractService, maxBytes int64, pingInterval time.Duration, log *logger.Logger) *AnalysisHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalysisHandler{
		contractService: contractService,
		maxBytes:        maxBytes,
		pingInterval:    pingInterval,
		log:             log,
	}
}

// Analyze handles POST /api/v1/analyze
//
// The body is either JSON {type, name, content} or multipart with a "file"
// field plus optional "type" and "name". Validation failures are returned as
// a JSON error; once the document is accepted the response switches to an
// NDJSON progress stream that always ends with a complete or error record.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	input, err := h.bindInput(c)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.Is(err, domain.ErrFileTooLarge) || errors.As(err, &maxBytesErr) {
			HandleError(c, domain.ErrFileTooLarge)
			return
		}
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	doc, err := h.contractService.Prepare(c.Request.Context(), *input)
	if err != nil {
		HandleError(c, err)
		return
	}

	// Anonymous analyses are streamed but not saved.
	userID, _ := middleware.GetUserID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	c.Header("Content-Type", stream.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	log := h.log.With("request_id", c.GetString(middleware.ContextKeyRequestID))
	if userID != uuid.Nil {
		log = log.With("user_id", userID.String())
	}

	emitter := stream.NewEmitter(c.Writer, stream.WithPingInterval(h.pingInterval), stream.WithLogger(log))
	err = emitter.Relay(ctx, h.contractService.Analyze(ctx, userID, *doc))
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Info("client disconnected during analysis")
	default:
		log.Warn("analysis stream ended with error", "error", err)
	}
}

func (h *AnalysisHandler) bindInput(c *gin.Context) (*service.AnalyzeInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.bindMultipart(c)
	}

	if h.maxBytes > 0 {
		// Base64 content is about 4/3 of the file it encodes.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes*2+multipartOverhead)
	}
	var input service.AnalyzeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, err
	}
	return &input, nil
}

func (h *AnalysisHandler) bindMultipart(c *gin.Context) (*service.AnalyzeInput, error) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, errors.New("file field is required")
	}
	defer func() { _ = file.Close() }()

	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}
	return &service.AnalyzeInput{
		Type:        domain.DocumentType(c.PostForm("type")),
		Name:        name,
		File:        data,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}
