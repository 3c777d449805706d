package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func newTestMailer(c *captured, sendErr error) *SMTPMailer {
	m := NewSMTPMailer(Config{
		SMTPHost: "smtp.example.test",
		SMTPPort: 587,
		Username: "admin@example.test",
		Password: "secret",
	}, nil)
	m.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, msg
		return sendErr
	}
	return m
}

func decodePart(t *testing.T, r io.Reader) string {
	t.Helper()
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	out, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(strings.TrimSpace(string(raw)), "\r\n", ""))
	require.NoError(t, err)
	return string(out)
}

func TestSMTPMailer_PlainMessage(t *testing.T) {
	var c captured
	m := newTestMailer(&c, nil)

	err := m.Send(context.Background(), Message{Subject: "[QSSAGE] 2 reports", Body: "URL: http://a.test/\nURL: http://b.test/"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.test:587", c.addr)
	assert.Equal(t, "admin@example.test", c.from)
	assert.Equal(t, []string{"admin@example.test"}, c.to)

	parsed, err := mail.ReadMessage(bytes.NewReader(c.msg))
	require.NoError(t, err)
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "[QSSAGE] 2 reports", subject)
	assert.Equal(t, "URL: http://a.test/\nURL: http://b.test/", decodePart(t, parsed.Body))
}

func TestSMTPMailer_Attachments(t *testing.T) {
	var c captured
	m := newTestMailer(&c, nil)

	err := m.Send(context.Background(), Message{
		To:      []string{"ops@example.test"},
		Subject: "backup",
		Body:    "2 reports",
		Attachments: []Attachment{
			{Filename: "reports.csv", ContentType: "text/csv", Data: []byte("id,url\n1,http://a.test/\n")},
			{Filename: "reports.pdf", Data: []byte("%PDF-1.3")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.test"}, c.to)

	parsed, err := mail.ReadMessage(bytes.NewReader(c.msg))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var names, bodies []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, p.FileName())
		bodies = append(bodies, decodePart(t, p))
	}
	assert.Equal(t, []string{"", "reports.csv", "reports.pdf"}, names)
	assert.Equal(t, "2 reports", bodies[0])
	assert.Equal(t, "id,url\n1,http://a.test/\n", bodies[1])
	assert.Equal(t, "%PDF-1.3", bodies[2])
}

func TestSMTPMailer_Errors(t *testing.T) {
	assert.ErrorIs(t, NewSMTPMailer(Config{}, nil).Send(context.Background(), Message{}), ErrNotConfigured)

	var c captured
	m := newTestMailer(&c, errors.New("535 auth failed"))
	err := m.Send(context.Background(), Message{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}
