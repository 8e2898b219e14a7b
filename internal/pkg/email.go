package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends notification e-mails. A nil Mailer or empty host sends nothing.
type Mailer struct {
	cfg SMTPConfig
}

func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Enabled() bool {
	return m != nil
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	if m == nil {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	return d.DialAndSend(msg)
}

// PostOpenHTML renders the "new question in a project you follow" e-mail.
func PostOpenHTML(projectName, postTitle string, postID uint64) string {
	return fmt.Sprintf(`<p>Hello,</p><p>A new question was published in <b>%s</b>:</p><p><a href="/questions/%d">%s</a></p>`,
		html.EscapeString(projectName), postID, html.EscapeString(postTitle))
}

// NewCommentsHTML renders the "new comments on a question" e-mail.
func NewCommentsHTML(postTitle string, postID uint64, count int) string {
	return fmt.Sprintf(`<p>Hello,</p><p>There are %d new comments on <a href="/questions/%d">%s</a>.</p>`,
		count, postID, html.EscapeString(postTitle))
}
