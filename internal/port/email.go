package port

import "context"

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	SendAnalysisReadyEmail(ctx context.Context, toEmail, toName, contractName, contractID string) error
}
