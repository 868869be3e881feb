package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers the OTP code and session token to a freshly registered
// account. Delivery is best-effort: callers report failures but never roll
// back the registration.
type Mailer interface {
	SendOTP(ctx context.Context, recipient, code, token string) error
}

type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, recipient, code, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	msg.WriteString("Subject: Your Croom verification code\r\n")
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "Your verification code is %s. It expires in 10 minutes.\r\n", code)
	fmt.Fprintf(&msg, "Session token: %s\r\n", token)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	return smtp.SendMail(addr, auth, m.from, []string{recipient}, []byte(msg.String()))
}

// LogMailer writes the code to the log instead of sending mail. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(ctx context.Context, recipient, code, _ string) error {
	m.logger.InfoContext(ctx, "otp issued", "recipient", recipient, "code", code)
	return nil
}
