package notify

import (
	"context"
	"log/slog"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EmailSender delivers a rendered message. Implementations are expected to be
// non-fatal collaborators: callers log failures and continue.
type EmailSender interface {
	Send(ctx context.Context, subject, htmlBody string, to []Recipient) error
}

type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// LogEmailSender is the dev-profile sender: it only logs that a delivery
// would have happened. The code itself is never logged.
type LogEmailSender struct{}

func (LogEmailSender) Send(ctx context.Context, subject, _ string, to []Recipient) error {
	for _, r := range to {
		slog.InfoContext(ctx, "email delivery skipped (no transport configured)",
			"subject_len", len(subject), "recipient", r.Email)
	}
	return nil
}
