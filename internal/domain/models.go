package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents an account that owns analyzed contracts.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document is a submitted contract after text extraction. It is immutable once
// handed to the summarizer.
type Document struct {
	Type    DocumentType
	Name    string
	Content string
	// Raw holds the original upload bytes when available, for archiving.
	Raw         []byte
	ContentType string
}

// Contract is the persisted record of a completed analysis.
type Contract struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Name         string          `db:"name" json:"name"`
	DocumentType DocumentType    `db:"document_type" json:"document_type"`
	Summary      string          `db:"summary" json:"summary"`
	Analysis     json.RawMessage `db:"analysis" json:"analysis"`
	ChunkCount   int             `db:"chunk_count" json:"chunk_count"`
	ModelUsed    string          `db:"model_used" json:"model_used"`
	StorageKey   string          `db:"storage_key" json:"-"`
	ContentSize  int64           `db:"content_size" json:"content_size"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`

	// DownloadURL is a presigned link to the archived original, set on reads.
	DownloadURL string `db:"-" json:"download_url,omitempty"`
}
