// Package notify delivers volunteer-facing email. Delivery is strictly
// best-effort: callers fire dispatches asynchronously and a failed send
// never rolls back the write that triggered it.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"sync"

	qrcode "github.com/skip2/go-qrcode"
)

// Message is one outbound email. When QRPayload is set the dispatcher
// renders it as a PNG QR code and attaches it inline.
type Message struct {
	To        string
	Subject   string
	Body      string
	QRPayload string
}

// Dispatcher sends a single message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// SMTPConfig carries the relay settings for the SMTP dispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail through a plain-auth relay.
type SMTP struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Dispatch(ctx context.Context, msg Message) error {
	body, err := buildMIME(s.cfg.From, msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

const mimeBoundary = "pledgeit-mail-boundary"

func buildMIME(from string, msg Message) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.QRPayload == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	png, err := qrcode.Encode(msg.QRPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mimeBoundary)
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	fmt.Fprintf(&b, "\r\n--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: image/png; name=\"qrcode.png\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"qrcode.png\"\r\n\r\n")
	b.WriteString(wrap76(base64.StdEncoding.EncodeToString(png)))
	fmt.Fprintf(&b, "\r\n--%s--\r\n", mimeBoundary)
	return []byte(b.String()), nil
}

func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}

// Log writes messages to the structured log instead of sending them; the
// default when no SMTP relay is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Dispatch(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "notification (not sent, no relay configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"has_qr", msg.QRPayload != "")
	return nil
}

// Capture records dispatched messages for assertions in tests. Safe for use
// from the asynchronous dispatch goroutines the services spawn.
type Capture struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned from every Dispatch call.
	Err error
}

func (c *Capture) Dispatch(ctx context.Context, msg Message) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *Capture) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}
