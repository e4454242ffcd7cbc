// Package mailer defines the outbound-notification collaborator. Actual
// delivery (SMTP, a mail API) lives outside this module; the shipped
// implementation records what would have been sent.
//
// Notification failures are best-effort by design: they must never roll back
// a directory mutation that already happened.
package mailer

import (
	"context"

	"github.com/ycchuang/sheetbook/internal/logging"
)

// Notifier dispatches account mail.
type Notifier interface {
	// SendCode delivers a one-time code, e.g. for a password reset.
	SendCode(ctx context.Context, to, code, subject string) error

	// SendInvite tells a collaborator they were granted access to a book.
	SendInvite(ctx context.Context, to, inviterName, bookName string) error
}

// LogNotifier writes every notification to the log instead of sending it.
type LogNotifier struct {
	log logging.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "mailer")}
}

func (n *LogNotifier) SendCode(ctx context.Context, to, code, subject string) error {
	n.log.Info(ctx, "would send code", "to", to, "subject", subject)
	return nil
}

func (n *LogNotifier) SendInvite(ctx context.Context, to, inviterName, bookName string) error {
	n.log.Info(ctx, "would send invite", "to", to, "inviter", inviterName, "book", bookName)
	return nil
}
