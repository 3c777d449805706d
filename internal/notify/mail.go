package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/qssage/internal/logging"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text e-mail. Empty To falls back to the configured recipients.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer sends e-mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an authenticated SMTP relay (STARTTLS when offered).
type SMTPMailer struct {
	cfg    Config
	send   sendFunc
	now    func() time.Time
	logger logging.Logger
}

func NewSMTPMailer(cfg Config, logger logging.Logger) *SMTPMailer {
	if len(cfg.To) == 0 && cfg.Username != "" {
		cfg.To = []string{cfg.Username}
	}
	return &SMTPMailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logging.OrNop(logger).With(logging.F("component", "mailer")),
	}
}

// Enabled reports whether credentials and a relay are configured.
func (m *SMTPMailer) Enabled() bool {
	return m != nil && m.cfg.SMTPHost != "" && m.cfg.Username != "" && m.cfg.Password != ""
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	to := msg.To
	if len(to) == 0 {
		to = m.cfg.To
	}
	if len(to) == 0 {
		return fmt.Errorf("mail: no recipients: %w", ErrNotConfigured)
	}

	raw, err := m.compose(to, msg)
	if err != nil {
		return err
	}

	addr := m.cfg.SMTPHost + ":" + strconv.Itoa(m.cfg.SMTPPort)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)

	// smtp.SendMail takes no context; the goroutine outlives a cancelled ctx
	// until the relay answers or the connection drops.
	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, m.cfg.Username, to, raw) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			m.logger.Warn("mail send failed", logging.F("subject", msg.Subject), logging.Err(err))
			return fmt.Errorf("mail: send: %w", err)
		}
	}
	m.logger.Info("mail sent", logging.F("to", strings.Join(to, ",")), logging.F("subject", msg.Subject))
	return nil
}

func (m *SMTPMailer) compose(to []string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", m.cfg.Username)
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		header("Content-Type", `text/plain; charset="utf-8"`)
		header("Content-Transfer-Encoding", "base64")
		buf.WriteString("\r\n")
		writeBase64(&buf, []byte(msg.Body))
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", `multipart/mixed; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("mail: body part: %w", err)
	}
	writeBase64(part, []byte(msg.Body))

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, fmt.Errorf("mail: attachment %s: %w", a.Filename, err)
		}
		writeBase64(part, a.Data)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mail: close multipart: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64 writes data base64-encoded in 76-column lines.
func writeBase64(w io.Writer, data []byte) {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		_, _ = w.Write([]byte(enc[:76] + "\r\n"))
		enc = enc[76:]
	}
	_, _ = w.Write([]byte(enc + "\r\n"))
}
