package domain

import "errors"

var (
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserInactive           = errors.New("user is inactive")
	ErrDuplicateEmail         = errors.New("email already exists")
	ErrContractNotFound       = errors.New("contract not found")
	ErrEmptyContent           = errors.New("document content is empty")
	ErrUnsupportedDocType     = errors.New("unsupported document type")
	ErrFileTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrExtractionFailed       = errors.New("text extraction failed")
	ErrCompletionUnconfigured = errors.New("completion provider is not configured")
	ErrInvalidAnalysis        = errors.New("analysis output is invalid")
	ErrChunkFailed            = errors.New("chunk could not be summarized")
	ErrRequestBudgetExceeded  = errors.New("analysis exceeded its time budget")
	ErrInvalidExportFormat    = errors.New("invalid export format")
)
