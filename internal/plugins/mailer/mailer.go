// Package mailer delivers the platform's outbound mail over SMTP. It is
// configured from the environment; with no SMTP host set, messages are
// written to the log instead so development setups still surface
// recovery links.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/scribe/internal/config"
)

const dialTimeout = 10 * time.Second

// envelope is one message ready for the wire.
type envelope struct {
	from string
	to   []string
	msg  []byte
}

// Mailer sends plain-text mail through the configured SMTP server.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
	now    func() time.Time

	// send delivers an envelope; replaced in tests.
	send func(ctx context.Context, env envelope) error
}

// New creates a mailer. logger may be nil.
func New(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mailer{cfg: cfg, logger: logger, now: time.Now}
	m.send = m.dispatch
	return m
}

// IsConfigured reports whether an SMTP host is set.
func (m *Mailer) IsConfigured() bool {
	return m.cfg.Host != ""
}

// SendRecoveryLink mails a password recovery link. Unconfigured, the link
// is logged and no error is returned.
func (m *Mailer) SendRecoveryLink(ctx context.Context, to, link string) error {
	if !m.IsConfigured() {
		m.logger.Warn("smtp not configured; recovery link not mailed",
			slog.String("to", to),
			slog.String("link", link),
		)
		return nil
	}
	body := "Someone asked to reset the password for this Scribe account.\r\n\r\n" +
		"Follow this link to choose a new password:\r\n\r\n" + link + "\r\n\r\n" +
		"If you did not ask for this, you can ignore this message.\r\n"
	return m.SendMail(ctx, []string{to}, "Reset your Scribe password", body)
}

// SendMail sends a plain-text message to every recipient.
func (m *Mailer) SendMail(ctx context.Context, to []string, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("smtp is not configured")
	}
	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return err
	}
	if err := m.send(ctx, envelope{from: m.cfg.FromAddress, to: to, msg: msg}); err != nil {
		m.logger.Error("sending mail", slog.String("subject", subject), slog.Any("error", err))
		return err
	}
	m.logger.Info("mail sent", slog.String("subject", subject), slog.Int("recipients", len(to)))
	return nil
}

// buildMessage renders RFC 5322 headers and body. Header values containing
// line breaks are rejected.
func (m *Mailer) buildMessage(to []string, subject, body string) ([]byte, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	for _, v := range append([]string{subject}, to...) {
		if strings.ContainsAny(v, "\r\n") {
			return nil, fmt.Errorf("header value contains a line break")
		}
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

// dispatch picks the transport from the configured encryption mode.
func (m *Mailer) dispatch(ctx context.Context, env envelope) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	switch m.cfg.Encryption {
	case "ssl":
		d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: dialTimeout}, Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	default:
		d := &net.Dialer{Timeout: dialTimeout}
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if m.cfg.Encryption == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}
	if m.cfg.Username != "" {
		if err := client.Auth(gosmtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}
	return deliver(client, env)
}

// deliver runs MAIL FROM, RCPT TO and DATA on an open client.
func deliver(client *gosmtp.Client, env envelope) error {
	if err := client.Mail(env.from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range env.to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(env.msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
