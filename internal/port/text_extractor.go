package port

import "context"

// TextExtractor turns an uploaded binary document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}
