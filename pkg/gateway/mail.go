package gateway

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/a3rd/molniya/pkg/backoff"
	"github.com/a3rd/molniya/pkg/retry"
)

// submitFunc submits one fully-formed message; swappable for tests.
type submitFunc func(relay, from string, to []string, msg []byte) error

// Mailer builds RFC 822 messages and submits them to the configured relay.
type Mailer struct {
	relay  string
	from   string
	logger *zap.SugaredLogger

	submit submitFunc
}

// NewMailer returns a mailer submitting via relay with the given
// envelope-from address.
func NewMailer(relay, from string, logger *zap.SugaredLogger) *Mailer {
	return &Mailer{
		relay:  relay,
		from:   from,
		logger: logger,
		submit: func(relay, from string, to []string, msg []byte) error {
			return smtp.SendMail(relay, nil, from, to, msg)
		},
	}
}

// Send builds and submits one message. Relay hiccups are retried with
// exponential backoff for up to half a minute before the error surfaces.
func (m *Mailer) Send(ctx context.Context, to, alias, subject, body string) error {
	if to == "" {
		return errors.New("mail recipient address is empty")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: Nagios <%s>\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s <%s>\r\n", alias, to)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	err := retry.WithBackoff(
		ctx,
		func(context.Context) error {
			return m.submit(m.relay, m.from, []string{to}, []byte(msg.String()))
		},
		retry.Any,
		backoff.NewExponentialWithJitter(time.Second, 10*time.Second),
		30*time.Second,
	)
	if err != nil {
		return errors.Wrapf(err, "can't submit mail for %s via %s", to, m.relay)
	}

	m.logger.Debugw("Submitted mail", zap.String("to", to), zap.String("subject", subject))

	return nil
}
