package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const linkEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8fafc;">
  <table role="presentation" style="max-width: 480px; margin: 0 auto; background-color: #ffffff; border-radius: 16px;">
    <tr>
      <td style="padding: 40px;">
        <h1 style="margin: 0 0 16px; font-size: 24px; font-weight: 600; text-align: center; color: #1e293b;">{{.Title}}</h1>
        <p style="margin: 0 0 24px; font-size: 16px; line-height: 24px; text-align: center; color: #64748b;">{{.Intro}}</p>
        <div style="text-align: center; margin-bottom: 24px;">
          <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #3b82f6; color: #ffffff; text-decoration: none; font-size: 16px; border-radius: 12px;">{{.Action}}</a>
        </div>
        <p style="margin: 0 0 24px; font-size: 12px; line-height: 18px; text-align: center; word-break: break-all; color: #3b82f6;">{{.Link}}</p>
        <p style="margin: 0; font-size: 12px; line-height: 18px; text-align: center; color: #94a3b8;">If you didn't request this email, you can safely ignore it.</p>
      </td>
    </tr>
  </table>
</body>
</html>`

var linkTmpl = template.Must(template.New("link").Parse(linkEmailTemplate))

func linkMessage(subject, title, intro, action, link string) Message {
	var buf bytes.Buffer
	// The template is a compile-time constant; execution cannot fail on
	// string fields.
	_ = linkTmpl.Execute(&buf, map[string]interface{}{
		"Title":  title,
		"Intro":  intro,
		"Action": action,
		"Link":   link,
	})

	text := fmt.Sprintf("%s\n\n%s\n\n%s\n\nIf you didn't request this email, you can safely ignore it.\n", title, intro, link)

	return Message{Subject: subject, HTML: buf.String(), Text: text}
}

// VerificationMessage renders the email-verification message for the given
// confirmation link.
func VerificationMessage(link string, expiresInHours int) Message {
	return linkMessage(
		"Verify your email address",
		"Verify your email address",
		fmt.Sprintf("Click the button below to verify your email. This link expires in %d hours.", expiresInHours),
		"Verify email",
		link,
	)
}

// ResetMessage renders the password-reset message for the given reset link.
func ResetMessage(link string, expiresInMinutes int) Message {
	return linkMessage(
		"Reset your password",
		"Reset your password",
		fmt.Sprintf("Click the button below to choose a new password. This link expires in %d minutes.", expiresInMinutes),
		"Reset password",
		link,
	)
}
