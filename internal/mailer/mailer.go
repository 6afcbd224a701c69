// Package mailer sends the controller's status-change and actuator-
// failure notices over SMTP (spec §6, §7), retrying transient send
// failures with the backoff policy spec §4.3 assigns to mail.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"
)

// Retry policy for mail sends (spec §4.3: "mail send: 6 tries, 3s between").
// MaxRetries counts the retries after the first attempt.
var (
	MaxRetries   uint64 = 5
	RetryBackoff        = 3 * time.Second
)

// Mailer sends plaintext notification emails via an SMTP relay.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

// New builds a Mailer targeting the given SMTP host/port with the
// given credentials, notifying the given recipients.
func New(host string, port int, username, password, from string, to []string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}
}

// Send delivers subject/body to all configured recipients, retrying
// per the configured policy. A failure here is logged by the caller
// and never blocks actuation (spec §7).
func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if len(m.to) == 0 {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryBackoff), MaxRetries)

	err := backoff.Retry(func() error {
		return m.dialer.DialAndSend(msg)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("sending mail %q: %w", subject, err)
	}
	return nil
}

// SendIRFailureNotice sends the "Send IR" notice required on every
// actuator failure (spec §7).
func (m *Mailer) SendIRFailureNotice(ctx context.Context, detail string) error {
	return m.Send(ctx, "Send IR failed", detail)
}

// SendIRTransitionNotice sends the "Send IR" notice required on every
// successful heat<->off transition (spec §7), distinct from
// SendIRFailureNotice's failure case.
func (m *Mailer) SendIRTransitionNotice(ctx context.Context, from, to string) error {
	return m.Send(ctx, "Send IR", fmt.Sprintf("%s -> %s", from, to))
}

// SendStatusChange sends the status-change notice required whenever a
// trace condition (e.g. "no outside temp") appears or disappears
// (spec §7; the first status after startup is never emailed).
func (m *Mailer) SendStatusChange(ctx context.Context, trace []string) error {
	body := ""
	for _, line := range trace {
		body += line + "\n"
	}
	return m.Send(ctx, "Heating controller status change", body)
}
