package noop

import (
	"context"
	"fmt"
	"net/url"

	"clausewise/internal/logger"
	"clausewise/internal/port"
)

type noopSender struct {
	frontendURL string
	log         *logger.Logger
}

// NewNoopSender creates an EmailSender that only logs the link it would have sent.
func NewNoopSender(frontendURL string, log *logger.Logger) port.EmailSender {
	return &noopSender{frontendURL: frontendURL, log: log}
}

func (s *noopSender) SendAnalysisReadyEmail(_ context.Context, toEmail, toName, contractName, contractID string) error {
	viewURL := fmt.Sprintf("%s/contracts/%s", s.frontendURL, url.PathEscape(contractID))
	s.log.Info("noop email: analysis ready", "to", toEmail, "name", toName, "contract", contractName, "url", viewURL)
	return nil
}
