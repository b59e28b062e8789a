// ABOUTME: SMTP email delivery using go-mail. Dial-per-send for sporadic notification traffic.
// ABOUTME: BCC all recipients in a single email. Retry = retry all recipients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// SmtpConfig holds SMTP connection parameters sourced from global env vars.
type SmtpConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLS      bool
}

// EmailSend sends an HTML+plaintext multipart email to all recipients via BCC.
// Uses DialAndSend (dial-per-send) — no persistent SMTP connection.
func EmailSend(ctx context.Context, cfg SmtpConfig, recipients []string, subject, htmlBody, textBody string) error {
	if len(recipients) == 0 {
		return errors.New("email send: no recipients")
	}

	// Strip CR/LF from subject to prevent header injection.
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	m := mail.NewMsg()
	if err := m.FromFormat("DutyLeak", cfg.From); err != nil {
		return fmt.Errorf("email send: set from: %w", err)
	}
	if err := m.Bcc(recipients...); err != nil {
		return fmt.Errorf("email send: set bcc: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, textBody)
	m.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain))
		opts = append(opts, mail.WithUsername(cfg.Username))
		opts = append(opts, mail.WithPassword(cfg.Password))
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("email send: create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

// InvitationEmail renders the workspace invitation message bodies.
func InvitationEmail(workspaceName, role, acceptURL string) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("You've been invited to %s on DutyLeak", workspaceName)
	textBody = fmt.Sprintf(
		"You have been invited to join the workspace %q as %s.\n\nAccept the invitation:\n%s\n\nThe invitation expires in 7 days.\n",
		workspaceName, role, acceptURL)
	htmlBody = fmt.Sprintf(
		`<p>You have been invited to join the workspace <strong>%s</strong> as <strong>%s</strong>.</p>`+
			`<p><a href="%s">Accept the invitation</a></p>`+
			`<p>The invitation expires in 7 days.</p>`,
		workspaceName, role, acceptURL)
	return subject, htmlBody, textBody
}

// BatchDoneEmail renders the batch-completion notice.
func BatchDoneEmail(workspaceName string, classified, failed int) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("DutyLeak batch classification finished for %s", workspaceName)
	textBody = fmt.Sprintf("Batch classification finished: %d products classified, %d failed.\n", classified, failed)
	htmlBody = fmt.Sprintf("<p>Batch classification finished: <strong>%d</strong> products classified, <strong>%d</strong> failed.</p>", classified, failed)
	return subject, htmlBody, textBody
}
