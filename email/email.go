// Package email delivers outbound mail for the authentication engine: an
// SMTP sender building multipart MIME messages and a logging sender for
// development.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Message is a rendered email body. Text is the plain alternative shown by
// clients that do not render HTML.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// SMTPConfig holds transport configuration for the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Validate checks that all required SMTP configuration fields are set.
func (cfg SMTPConfig) Validate() error {
	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "Host")
	}
	if cfg.Port == 0 {
		missing = append(missing, "Port")
	}
	if cfg.Username == "" {
		missing = append(missing, "Username")
	}
	if cfg.Password == "" {
		missing = append(missing, "Password")
	}
	if cfg.From == "" {
		missing = append(missing, "From")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing SMTP configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SMTPSender sends messages over SMTP with PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to string, msg Message) error {
	raw := buildMIMEMessage(s.cfg, to, msg)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMIMEMessage(cfg SMTPConfig, to string, msg Message) []byte {
	var buf bytes.Buffer
	boundary := "==KeelMailBoundary=="

	fromHeader := cfg.From
	if cfg.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 7bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Text)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 7bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// LogSender logs messages instead of sending them. Useful in development
// and as a safe default when no transport is configured.
type LogSender struct {
	Logf func(format string, args ...interface{})
}

func NewLogSender(logf func(format string, args ...interface{})) *LogSender {
	if logf == nil {
		logf = log.Printf
	}
	return &LogSender{Logf: logf}
}

func (l *LogSender) Send(ctx context.Context, to string, msg Message) error {
	l.Logf("[EMAIL] To: %s | Subject: %s | Text: %s", to, msg.Subject, msg.Text)
	return nil
}
