package auth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

var magicLinkTemplate = template.Must(template.New("magic").Parse(`<html>
	<body>
		<p>Click the link below to sign in to Certify.</p>
		<p><a href="{{.Link}}">Sign in</a></p>
		<p>If you did not request this email you can ignore it.</p>
	</body>
</html>`))

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) SendMagicLink(_ context.Context, to, link string) error {
	var content bytes.Buffer
	mimeHeaders := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	content.WriteString(fmt.Sprintf("To: %s\nSubject: Your Certify sign-in link\n%s", to, mimeHeaders))
	if err := magicLinkTemplate.Execute(&content, struct{ Link string }{link}); err != nil {
		return err
	}

	var a smtp.Auth
	if m.config.Username != "" {
		a = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	return smtp.SendMail(addr, a, m.config.From, []string{to}, content.Bytes())
}

// LogMailer prints links instead of sending them. Development only.
type LogMailer struct {
	Logger *logrus.Entry
}

func (m *LogMailer) SendMagicLink(_ context.Context, to, link string) error {
	m.Logger.WithField("to", to).WithField("link", link).Info("magic link")
	return nil
}
