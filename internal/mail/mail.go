// Package mail defines the outbound email collaborator.
//
// Delivery itself lives outside this service, the package only carries the
// contract plus a development sender that writes messages to the log.
package mail

import (
	"context"

	"github.com/avoytenko/gatekeeper/internal/logger"
)

// EmailSender delivers one message
// Implementations may block, callers decide whether to wait on them
type EmailSender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SendAsync dispatches the message on its own goroutine and only logs failures
// Used where the mail is a courtesy (MFA codes), never where it is the payload
func SendAsync(sender EmailSender, l logger.Logger, to string, subject string, body string) {
	go func() {
		// Deliberately not the request context: the request finishing
		// must not cancel the delivery
		if err := sender.Send(context.Background(), to, subject, body); err != nil {
			l.Error("Async email delivery failed", "to", to, "subject", subject, "error", err)
		}
	}()
}

// LogSender writes outbound mail to the log, the dev stand-in for a real relay
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(ctx context.Context, to string, subject string, body string) error {
	s.Logger.Info("Outbound email", "to", to, "subject", subject, "body", body)
	return nil
}
