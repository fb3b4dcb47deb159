package mail

import (
	"context"
	netmail "net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordReset(t *testing.T) {
	msg, err := PasswordReset("leerling@school.nl", "https://schoolmaps.nl", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "leerling@school.nl", msg.To.Address)
	assert.Contains(t, msg.Text, "https://schoolmaps.nl/reset-password?token=abc123")
	assert.Contains(t, msg.HTML, `href="https://schoolmaps.nl/reset-password?token=abc123"`)
	assert.Contains(t, msg.HTML, "<code>abc123</code>")
}

func TestSendgridPrepare(t *testing.T) {
	m := NewSendgridMailer("key", mustAddress("Schoolmaps <no-reply@schoolmaps.nl>")).(*sendgridMailer)

	v3 := m.prepare(Message{
		To:      mustAddress("leerling@school.nl"),
		Subject: "Wachtwoord resetten",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})

	require.Len(t, v3.Personalizations, 1)
	assert.Equal(t, "[Schoolmaps] Wachtwoord resetten", v3.Personalizations[0].Subject)
	assert.Equal(t, "no-reply@schoolmaps.nl", v3.From.Address)
	assert.Len(t, v3.Content, 2)
}

func TestConsoleMailer(t *testing.T) {
	assert.NoError(t, NewConsoleMailer().Send(context.Background(), Message{Subject: "x"}))
}

func mustAddress(raw string) netmail.Address {
	addr, err := ParseFrom(raw)
	if err != nil {
		panic(err)
	}
	return addr
}
