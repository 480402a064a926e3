package email

import (
	"context"
	"strings"
	"testing"
)

func TestSMTPConfigValidateListsMissingFields(t *testing.T) {
	err := SMTPConfig{Port: 587}.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, field := range []string{"Host", "Username", "Password", "From"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("%s not reported: %v", field, err)
		}
	}
	if strings.Contains(err.Error(), "Port") {
		t.Fatalf("Port wrongly reported missing: %v", err)
	}

	ok := SMTPConfig{Host: "mail.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("complete config rejected: %v", err)
	}
}

func TestNewSMTPSenderRejectsIncompleteConfig(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{Host: "mail.example.com"}); err == nil {
		t.Fatal("expected error for incomplete config")
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	cfg := SMTPConfig{From: "noreply@example.com", FromName: "Keel"}
	msg := Message{Subject: "Verify your email address", HTML: "<p>hello</p>", Text: "hello"}

	raw := string(buildMIMEMessage(cfg, "user@example.com", msg))

	for _, want := range []string{
		"From: Keel <noreply@example.com>\r\n",
		"To: user@example.com\r\n",
		"Subject: Verify your email address\r\n",
		"Content-Type: multipart/alternative;",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"<p>hello</p>",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("%q missing from message:\n%s", want, raw)
		}
	}

	// Both alternatives sit inside the boundary and the message terminates it.
	if !strings.HasSuffix(raw, "--==KeelMailBoundary==--\r\n") {
		t.Fatalf("message not terminated: %q", raw[len(raw)-40:])
	}
}

func TestBuildMIMEMessageBareFrom(t *testing.T) {
	raw := string(buildMIMEMessage(SMTPConfig{From: "noreply@example.com"}, "user@example.com", Message{}))
	if !strings.Contains(raw, "From: noreply@example.com\r\n") {
		t.Fatalf("bare From header missing:\n%s", raw)
	}
}

func TestLogSenderRecords(t *testing.T) {
	var logged string
	sender := NewLogSender(func(format string, args ...interface{}) {
		logged = format
		_ = args
	})

	if err := sender.Send(context.Background(), "user@example.com", Message{Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if logged == "" {
		t.Fatal("nothing logged")
	}
}

func TestVerificationMessageCarriesLink(t *testing.T) {
	msg := VerificationMessage("https://app.example.com/verify?token=abc", 24)
	if !strings.Contains(msg.HTML, "https://app.example.com/verify?token=abc") {
		t.Fatal("link missing from HTML body")
	}
	if !strings.Contains(msg.Text, "https://app.example.com/verify?token=abc") {
		t.Fatal("link missing from text body")
	}
	if !strings.Contains(msg.Text, "24 hours") {
		t.Fatalf("expiry hint missing: %q", msg.Text)
	}
}

func TestResetMessageCarriesLink(t *testing.T) {
	msg := ResetMessage("https://app.example.com/reset?token=abc", 30)
	if !strings.Contains(msg.HTML, "https://app.example.com/reset?token=abc") {
		t.Fatal("link missing from HTML body")
	}
	if !strings.Contains(msg.Text, "30 minutes") {
		t.Fatalf("expiry hint missing: %q", msg.Text)
	}
}
