package mailer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogMailer records ticket emails in the log instead of sending them.
// Selected with mail.driver=log for local development.
type LogMailer struct {
	checker *RecipientChecker
	logger  zerolog.Logger
	now     func() time.Time
}

// NewLogMailer creates a LogMailer. checker may be nil.
func NewLogMailer(checker *RecipientChecker, logger zerolog.Logger) *LogMailer {
	return &LogMailer{checker: checker, logger: logger, now: time.Now}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(ctx context.Context, msg Message) Result {
	if m.checker != nil {
		if rejected := m.checker.Check(ctx, msg.To); rejected != nil {
			return *rejected
		}
	}
	id := "log-" + uuid.NewString()
	m.logger.Warn().
		Str("to", msg.To).
		Str("ticketCode", msg.TicketCode).
		Str("event", msg.EventName).
		Int("qrBytes", len(msg.QRCode)).
		Str("messageId", id).
		Msg("Mail driver is 'log' - ticket email not sent")
	return Result{Success: true, MessageID: id, SentAt: m.now()}
}

// Close is a no-op.
func (m *LogMailer) Close() error { return nil }
