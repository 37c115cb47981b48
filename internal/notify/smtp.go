package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/romariotrain/frames-service/internal/config"
)

// SMTPSink sends notification emails through a plain STARTTLS SMTP relay.
type SMTPSink struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSink(cfg config.SMTPConfig) *SMTPSink {
	return &SMTPSink{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSink) NotifySuccess(ctx context.Context, recipient, jobName, downloadLink string) error {
	subject := fmt.Sprintf("Video processed: %s", jobName)
	body := fmt.Sprintf(`<html><body>
<h2>Video Processed</h2>
<p>Your video <strong>%s</strong> has been processed.</p>
<p>Download the extracted frames here:</p>
<p><a href="%s">Download frames</a></p>
<p>The link expires; request a new one from the status page if needed.</p>
</body></html>`, html.EscapeString(jobName), downloadLink)

	return s.sendMail(ctx, recipient, subject, body)
}

func (s *SMTPSink) NotifyFailure(ctx context.Context, recipient, jobName, errText string) error {
	subject := fmt.Sprintf("Video processing failed: %s", jobName)
	body := fmt.Sprintf(`<html><body>
<h2>Video Processing Failed</h2>
<p>Processing of <strong>%s</strong> did not complete.</p>
<p>Details:</p>
<pre>%s</pre>
</body></html>`, html.EscapeString(jobName), html.EscapeString(errText))

	return s.sendMail(ctx, recipient, subject, body)
}

func (s *SMTPSink) sendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	if err := s.send(addr, auth, s.cfg.Sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
