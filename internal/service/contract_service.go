package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"clausewise/internal/domain"
	"clausewise/internal/export"
	"clausewise/internal/extract"
	"clausewise/internal/logger"
	"clausewise/internal/port"
)

const (
	persistTimeout = 30 * time.Second
	defaultName    = "Untitled contract"
)

// Analyzer runs the summarization pipeline.
type Analyzer interface {
	Validate(doc domain.Document) error
	Run(ctx context.Context, doc domain.Document) <-chan domain.ProgressEvent
}

// AnalyzeInput is a contract submission. Either Content or File is set.
type AnalyzeInput struct {
	Type domain.DocumentType `json:"type"`
	Name string              `json:"name"`
	// Content is plain text, or for pdf either extracted text or base64 of the file.
	Content string `json:"content"`

	File        []byte `json:"-"`
	ContentType string `json:"-"`
}

// ContractService defines the analysis and contract history contract.
type ContractService interface {
	// Prepare extracts and validates a submission before any streaming starts.
	Prepare(ctx context.Context, input AnalyzeInput) (*domain.Document, error)
	// Analyze streams pipeline events for doc. After a complete event the
	// contract is saved for userID in the background; failures there are only logged.
	Analyze(ctx context.Context, userID uuid.UUID, doc domain.Document) <-chan domain.ProgressEvent
	List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error)
	Get(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error)
	Delete(ctx context.Context, userID, contractID uuid.UUID) error
	Export(ctx context.Context, userID uuid.UUID, format domain.ExportFormat, w io.Writer) error
	// Wait blocks until background saves finish or ctx is done.
	Wait(ctx context.Context) error
}

// ContractServiceDeps groups the collaborators of ContractService. Storage and
// Email may be nil.
type ContractServiceDeps struct {
	Analyzer      Analyzer
	Extractor     port.TextExtractor
	Contracts     port.ContractRepository
	Users         port.UserRepository
	Storage       port.ObjectStorage
	Email         port.EmailSender
	MaxBytes      int64
	PresignExpiry time.Duration
	Log           *logger.Logger
}

type contractService struct {
	deps ContractServiceDeps
	log  *logger.Logger
	wg   sync.WaitGroup
}

// NewContractService creates a new ContractService implementation.
func NewContractService(deps ContractServiceDeps) ContractService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	if deps.PresignExpiry <= 0 {
		deps.PresignExpiry = time.Hour
	}
	return &contractService{deps: deps, log: log}
}

func (s *contractService) Prepare(ctx context.Context, input AnalyzeInput) (*domain.Document, error) {
	doc := &domain.Document{
		Type: input.Type,
		Name: strings.TrimSpace(input.Name),
	}
	if doc.Type != "" && !domain.ValidDocumentTypes[doc.Type] {
		return nil, domain.ErrUnsupportedDocType
	}

	var raw []byte
	switch {
	case len(input.File) > 0:
		raw = input.File
	case doc.Type == domain.DocumentTypePDF:
		if decoded, ok := extract.DecodePDF(input.Content); ok {
			raw = decoded
		}
	}

	if s.tooLarge(raw, input.Content) {
		return nil, domain.ErrFileTooLarge
	}

	if raw != nil {
		if doc.Type == "" {
			doc.Type = domain.DocumentTypeText
			if mimetype.Detect(raw).Is("application/pdf") {
				doc.Type = domain.DocumentTypePDF
			}
		}
		if s.deps.Extractor == nil {
			return nil, fmt.Errorf("%w: no extractor configured", domain.ErrExtractionFailed)
		}
		text, err := s.deps.Extractor.ExtractText(ctx, raw)
		if err != nil {
			return nil, err
		}
		doc.Content = text
		doc.Raw = raw
		doc.ContentType = input.ContentType
		if doc.ContentType == "" {
			doc.ContentType = mimetype.Detect(raw).String()
		}
	} else {
		if doc.Type == "" {
			doc.Type = domain.DocumentTypeText
		}
		doc.Content = input.Content
	}

	if err := s.deps.Analyzer.Validate(*doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// tooLarge measures the decoded upload when there is one, else the text.
func (s *contractService) tooLarge(raw []byte, content string) bool {
	if s.deps.MaxBytes <= 0 {
		return false
	}
	if raw != nil {
		return int64(len(raw)) > s.deps.MaxBytes
	}
	return int64(len(content)) > s.deps.MaxBytes
}

func (s *contractService) Analyze(ctx context.Context, userID uuid.UUID, doc domain.Document) <-chan domain.ProgressEvent {
	in := s.deps.Analyzer.Run(ctx, doc)
	out := make(chan domain.ProgressEvent)

	go func() {
		defer close(out)
		for ev := range in {
			if ev.Type == domain.EventComplete {
				s.persistAsync(userID, doc, ev)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// persistAsync saves a completed analysis without blocking the stream. It
// uses its own deadline because the request may already be gone.
func (s *contractService) persistAsync(userID uuid.UUID, doc domain.Document, ev domain.ProgressEvent) {
	if userID == uuid.Nil || s.deps.Contracts == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("contract save panicked", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		s.persist(ctx, userID, doc, ev)
	}()
}

func (s *contractService) persist(ctx context.Context, userID uuid.UUID, doc domain.Document, ev domain.ProgressEvent) {
	log := s.log.With("user_id", userID.String(), "document", doc.Name)

	analysis, err := json.Marshal(ev.Analysis)
	if err != nil {
		log.Error("encoding analysis for storage failed", "error", err)
		return
	}

	contract := &domain.Contract{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         doc.Name,
		DocumentType: doc.Type,
		Summary:      ev.Summary,
		Analysis:     analysis,
		ContentSize:  int64(len(doc.Content)),
	}
	if contract.Name == "" {
		contract.Name = defaultName
	}
	if ev.Run != nil {
		contract.ChunkCount = ev.Run.ChunkCount
		contract.ModelUsed = ev.Run.Model
	}

	if s.deps.Storage != nil && len(doc.Raw) > 0 {
		contract.ContentSize = int64(len(doc.Raw))
		key := path.Join(userID.String(), contract.ID.String(), archiveName(doc.Name, doc.Type))
		_, err := s.deps.Storage.Put(ctx, port.ArchiveObject{
			Key:         key,
			Body:        bytes.NewReader(doc.Raw),
			ContentType: doc.ContentType,
			Size:        int64(len(doc.Raw)),
		})
		if err != nil {
			log.Warn("archiving original failed", "error", err)
		} else {
			contract.StorageKey = key
		}
	}

	if err := s.deps.Contracts.Create(ctx, contract); err != nil {
		log.Error("saving contract failed", "error", err)
		return
	}
	log.Info("contract saved", "contract_id", contract.ID.String(), "chunks", contract.ChunkCount)

	if s.deps.Email == nil || s.deps.Users == nil {
		return
	}
	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		log.Warn("loading user for notification failed", "error", err)
		return
	}
	if err := s.deps.Email.SendAnalysisReadyEmail(ctx, user.Email, user.FullName, contract.Name, contract.ID.String()); err != nil {
		log.Warn("sending analysis ready email failed", "error", err)
	}
}

func archiveName(name string, docType domain.DocumentType) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "original"
	}
	if path.Ext(name) == "" && docType == domain.DocumentTypePDF {
		name += ".pdf"
	}
	return name
}

func (s *contractService) List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error) {
	contracts, total, err := s.deps.Contracts.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("contract.List: %w", err)
	}
	return contracts, total, nil
}

func (s *contractService) Get(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.deps.Contracts.GetByID(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	if contract.StorageKey != "" && s.deps.Storage != nil {
		url, err := s.deps.Storage.PresignedURL(ctx, contract.StorageKey, s.deps.PresignExpiry)
		if err != nil {
			s.log.Warn("presigning archived original failed", "contract_id", contractID.String(), "error", err)
		} else {
			contract.DownloadURL = url
		}
	}
	return contract, nil
}

func (s *contractService) Delete(ctx context.Context, userID, contractID uuid.UUID) error {
	contract, err := s.deps.Contracts.GetByID(ctx, userID, contractID)
	if err != nil {
		return err
	}
	if err := s.deps.Contracts.Delete(ctx, userID, contractID); err != nil {
		return err
	}
	if contract.StorageKey != "" && s.deps.Storage != nil {
		if err := s.deps.Storage.Delete(ctx, contract.StorageKey); err != nil {
			s.log.Warn("deleting archived original failed", "contract_id", contractID.String(), "error", err)
		}
	}
	return nil
}

func (s *contractService) Export(ctx context.Context, userID uuid.UUID, format domain.ExportFormat, w io.Writer) error {
	if format != domain.ExportFormatCSV && format != domain.ExportFormatXLSX {
		return domain.ErrInvalidExportFormat
	}
	contracts, err := s.deps.Contracts.ListAllByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("contract.Export: %w", err)
	}
	return export.Write(w, format, contracts)
}

func (s *contractService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
