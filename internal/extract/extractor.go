// Package extract turns uploaded contract bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
)

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	extraBreaks   = regexp.MustCompile(`\n{3,}`)
)

// Extractor implements port.TextExtractor for PDF and plain text uploads.
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log}
}

// ExtractText sniffs data and returns its text. Pages of a PDF are separated
// by blank lines so they chunk as paragraphs.
func (x *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrExtractionFailed)
	}

	mt := mimetype.Detect(data)
	var (
		text string
		err  error
	)
	switch {
	case mt.Is("application/pdf"):
		text, err = extractPDF(ctx, data)
	case isText(mt, data):
		text = string(data)
	default:
		return "", fmt.Errorf("%w: unsupported file type %s", domain.ErrExtractionFailed, mt.String())
	}
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	x.log.Debug("extracted text", "mime", mt.String(), "bytes", len(data), "chars", utf8.RuneCountInString(text))
	if text == "" {
		return "", fmt.Errorf("%w: no text found in %s", domain.ErrExtractionFailed, mt.String())
	}
	return text, nil
}

func isText(mt *mimetype.MIME, data []byte) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return utf8.Valid(data)
		}
	}
	return false
}

func extractPDF(ctx context.Context, data []byte) (text string, err error) {
	// The PDF parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtractionFailed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf reader: %v", domain.ErrExtractionFailed, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", domain.ErrExtractionFailed, i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// Normalize unifies line endings, drops trailing spaces and collapses runs of
// blank lines so paragraph boundaries survive chunking.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = extraBreaks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// DecodePDF reports whether content is a base64 PDF payload, optionally in
// data URL form, and returns the decoded bytes.
func DecodePDF(content string) ([]byte, bool) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, false
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if !mimetype.Detect(raw).Is("application/pdf") {
		return nil, false
	}
	return raw, true
}
