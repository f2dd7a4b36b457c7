package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"letterdesk/internal/domain/notify"
	"letterdesk/internal/platform/config"
)

type Settings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	UseTLS   bool   `json:"useTls"`
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

type smtpMailer struct {
	settings Settings
}

// Manager wraps the active mailer so SMTP settings stored by an admin can
// replace it without a restart.
type Manager struct {
	mu      sync.RWMutex
	current notify.Mailer
}

func New(cfg config.Config) *Manager {
	m := &Manager{current: noopMailer{}}
	if cfg.EmailEnabled && cfg.SMTPHost != "" {
		m.current = &smtpMailer{settings: Settings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			UseTLS:   cfg.SMTPUseTLS,
		}}
	}
	return m
}

func (m *Manager) Send(ctx context.Context, from, to, subject, body string) error {
	m.mu.RLock()
	mailer := m.current
	m.mu.RUnlock()
	return mailer.Send(ctx, from, to, subject, body)
}

func (m *Manager) Configure(settings Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(settings.Host) == "" {
		m.current = noopMailer{}
		return
	}
	if settings.Port == 0 {
		settings.Port = 587
	}
	m.current = &smtpMailer{settings: settings}
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
	msg := buildMessage(from, to, subject, body)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.settings.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.settings.UseTLS {
		tlsConfig := &tls.Config{ServerName: s.settings.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}

	if s.settings.User != "" {
		auth := smtp.PlainAuth("", s.settings.User, s.settings.Password, s.settings.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}
