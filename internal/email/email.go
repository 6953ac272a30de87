package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func SendText(cfg SMTPConfig, to, subject, body string) error {
	if cfg.Host == "" {
		return fmt.Errorf("smtp not configured")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)

	var b strings.Builder
	b.WriteString("From: " + cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return smtp.SendMail(addr, auth, cfg.From, []string{to}, []byte(b.String()))
}

// SendInvitation delivers the invite link. The caller treats a failure as
// non-fatal and falls back to showing the raw link.
func SendInvitation(cfg SMTPConfig, to, inviteLink, inviterName string) error {
	if inviterName == "" {
		inviterName = "Admin"
	}
	subject := "You're invited to join the support team"
	body := "Hi,\n\n" +
		inviterName + " has invited you to join the customer support dashboard.\n\n" +
		"Accept the invitation here:\n" + inviteLink + "\n\n" +
		"This invitation will expire in 7 days. If you didn't expect it, you can safely ignore this email.\n"
	return SendText(cfg, to, subject, body)
}

// Sender binds an SMTP config so callers can depend on the sending methods
// instead of the package functions.
type Sender struct {
	cfg SMTPConfig
}

func NewSender(cfg SMTPConfig) *Sender { return &Sender{cfg: cfg} }

func (s *Sender) SendInvitation(to, inviteLink, inviterName string) error {
	return SendInvitation(s.cfg, to, inviteLink, inviterName)
}

func (s *Sender) SendPasswordReset(to, resetLink string) error {
	return SendPasswordReset(s.cfg, to, resetLink)
}

func SendPasswordReset(cfg SMTPConfig, to, resetLink string) error {
	subject := "Password reset request"
	body := "Hi,\n\n" +
		"A password reset was requested for your account. Use the link below to choose a new password:\n" +
		resetLink + "\n\n" +
		"The link expires in 30 minutes. If you didn't request this, no action is needed.\n"
	return SendText(cfg, to, subject, body)
}
