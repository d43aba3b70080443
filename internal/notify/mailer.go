package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	applog "sierraspos/internal/log"
)

// Message is one outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Bcc     []string
}

// Mailer delivers a message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(host string, port int, user, pass, from, fromName string) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{
		dialer:   gomail.NewDialer(host, port, user, pass),
		from:     from,
		fromName: fromName,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.To)
	if bcc := cleanAddrs(msg.Bcc, msg.To); len(bcc) > 0 {
		m.SetHeader("Bcc", bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer only logs what would have been sent. Used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Message) error {
	applog.Info(nil, "mail.skipped", map[string]any{
		"to":      m.To,
		"subject": m.Subject,
		"bcc":     len(m.Bcc),
	})
	return nil
}

// cleanAddrs trims, drops blanks and the primary recipient, and dedupes.
func cleanAddrs(addrs []string, to string) []string {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(to)): true}
	var out []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		k := strings.ToLower(a)
		if a == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}
