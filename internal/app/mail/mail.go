/*
Package mail sends the transactional emails of the identity service.

SendGrid delivers mail when an API key is configured. Without one the console mailer
logs the message instead, which is what development setups use.
*/
package mail

import (
	"context"
	"fmt"
	"net/http"
	netmail "net/mail"

	"schoolmaps/internal/pkg/logx"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// Message is a rendered email.
type Message struct {
	To      netmail.Address
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridMailer struct {
	key  string
	from *sgmail.Email
}

// NewSendgridMailer returns a Mailer backed by the SendGrid v3 API.
func NewSendgridMailer(apiKey string, from netmail.Address) Mailer {
	return &sendgridMailer{
		key:  apiKey,
		from: sgmail.NewEmail(from.Name, from.Address),
	}
}

func (m *sendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = "[Schoolmaps] " + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)

	return v3
}

func (m *sendgridMailer) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

type consoleMailer struct{}

// NewConsoleMailer returns a Mailer that logs messages instead of sending them.
func NewConsoleMailer() Mailer {
	return consoleMailer{}
}

func (consoleMailer) Send(_ context.Context, msg Message) error {
	logx.Info("Email (console mailer)",
		"to", msg.To.Address,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

// ParseFrom parses a MAIL_FROM value such as "Schoolmaps <no-reply@schoolmaps.nl>".
func ParseFrom(raw string) (netmail.Address, error) {
	addr, err := netmail.ParseAddress(raw)
	if err != nil {
		return netmail.Address{}, fmt.Errorf("invalid sender address %q: %w", raw, err)
	}
	return *addr, nil
}
