package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	netmail "net/mail"
	"net/url"
)

var passwordResetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
	`<p>Hoi,</p>
<p>Je hebt gevraagd om je Schoolmaps-wachtwoord te resetten. Gebruik de link hieronder binnen een uur:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>Reset-code: <code>{{.Token}}</code></p>
<p>Heb je dit niet aangevraagd? Dan kun je deze e-mail negeren.</p>`))

// PasswordReset renders the reset email for to. The link points at baseURL with the
// token as a query parameter; the token is also shown for clients without a browser.
func PasswordReset(to, baseURL, token string) (Message, error) {
	link := baseURL + "/reset-password?token=" + url.QueryEscape(token)

	var html bytes.Buffer
	if err := passwordResetHTML.Execute(&html, struct{ Link, Token string }{link, token}); err != nil {
		return Message{}, fmt.Errorf("rendering reset email: %w", err)
	}

	text := fmt.Sprintf("Je hebt gevraagd om je Schoolmaps-wachtwoord te resetten.\n\nLink: %s\nReset-code: %s\n\nDe link is een uur geldig.", link, token)

	return Message{
		To:      netmail.Address{Address: to},
		Subject: "Wachtwoord resetten",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
