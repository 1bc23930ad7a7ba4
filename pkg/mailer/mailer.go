// Package mailer defines the email-sending collaborator used by the
// sendOwnerEmail step. Sending is best-effort: implementations report
// failure in the Result, they never return a Go error.
package mailer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Result is the outcome of one send attempt.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender delivers the owner welcome email with the one-time login link.
type Sender interface {
	Send(ctx context.Context, toEmail, link, displayName string) Result
}

// SlogSender logs the send instead of delivering it. Default for local
// development and environments without an email provider.
type SlogSender struct {
	logger *slog.Logger
}

func NewSlogSender(logger *slog.Logger) *SlogSender {
	return &SlogSender{logger: logger.With("module", "mailer")}
}

func (s *SlogSender) Send(ctx context.Context, toEmail, link, displayName string) Result {
	messageID := uuid.New().String()

	// The link embeds a login token; log only its presence.
	s.logger.InfoContext(ctx, "Owner email send (log-only sender)",
		"to", toEmail,
		"display_name", displayName,
		"message_id", messageID,
		"has_link", link != "",
	)

	return Result{Success: true, MessageID: messageID}
}

// RecordingSender captures sends for test assertions. FailWith, when set,
// makes every send report that failure.
type RecordingSender struct {
	mu       sync.Mutex
	sends    []RecordedSend
	FailWith string
}

// RecordedSend is one captured send.
type RecordedSend struct {
	ToEmail     string
	Link        string
	DisplayName string
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (s *RecordingSender) Send(_ context.Context, toEmail, link, displayName string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sends = append(s.sends, RecordedSend{ToEmail: toEmail, Link: link, DisplayName: displayName})

	if s.FailWith != "" {
		return Result{Success: false, Error: s.FailWith}
	}

	return Result{Success: true, MessageID: uuid.New().String()}
}

// Sends returns the captured sends.
func (s *RecordingSender) Sends() []RecordedSend {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]RecordedSend(nil), s.sends...)
}
