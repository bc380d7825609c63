package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/myblog/config"
)

// ErrMailNotConfigured is returned when no SMTP host or sender is configured.
var ErrMailNotConfigured = errors.New("smtp not configured")

// Mailer delivers plain text email.
type Mailer interface {
	SendMail(from, to, subject, body string) error
}

// SMTPMailer sends mail through the configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPSection
}

// NewSMTPMailer creates a mailer for the SMTP section of the config.
func NewSMTPMailer(cfg config.SMTPSection) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendMail sends a plain text email. An empty from uses the configured sender.
func (m *SMTPMailer) SendMail(from, to, subject, body string) error {
	cfg := m.cfg
	if from == "" {
		from = cfg.From
	}
	if cfg.Host == "" || from == "" {
		return ErrMailNotConfigured
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	msg := BuildMessage(cfg.FromName, from, to, subject, body, time.Now())

	if !cfg.TLS {
		// Plain SMTP without TLS (not recommended)
		return smtp.SendMail(addr, auth, from, []string{to}, msg)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	// ensure we don't hang forever
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if cfg.Username != "" {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// BuildMessage renders RFC 5322 headers and body; non-ASCII header text is B-encoded.
func BuildMessage(fromName, from, to, subject, body string, now time.Time) []byte {
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", fromName), from)
	}
	var msg strings.Builder
	for _, h := range [][2]string{
		{"From", fromHeader},
		{"To", to},
		{"Subject", mime.BEncoding.Encode("UTF-8", subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	} {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg.String())
}
