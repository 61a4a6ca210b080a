package export

import (
	"encoding/csv"
	"io"

	"clausewise/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel on Windows needs to detect UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting contracts as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteContracts writes one row per contract.
func (w *Writer) WriteContracts(contracts []domain.Contract) error {
	for i := range contracts {
		if err := w.csv.Write(contractToRow(&contracts[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}
