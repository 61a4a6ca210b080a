package domain

// DocumentType is the declared type of a submitted contract.
type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeText DocumentType = "text"
)

// ValidDocumentTypes lists the accepted submission types.
var ValidDocumentTypes = map[DocumentType]bool{
	DocumentTypePDF:  true,
	DocumentTypeText: true,
}

// EventType discriminates progress stream records.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
)

// ExportFormat is the file format for contract exports.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)
