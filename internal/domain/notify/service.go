package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service sends lifecycle emails. Every send is best effort: failures are
// logged and never propagated to the caller.
type Service struct {
	Mailer Mailer
	From   string
}

func New(mailer Mailer, from string) *Service {
	return &Service{Mailer: mailer, From: from}
}

func (s *Service) RequestSubmitted(ctx context.Context, adminEmails []string, employeeName, letterType, requestID string) {
	subject := fmt.Sprintf("New letter request: %s", letterType)
	body := fmt.Sprintf("%s submitted a %s letter request (%s). Please review it in the admin dashboard.", employeeName, letterType, requestID)
	for _, to := range adminEmails {
		if err := s.Mailer.Send(ctx, s.From, to, subject, body); err != nil {
			slog.Warn("letter request notification failed", "to", to, "err", err)
		}
	}
}

func (s *Service) RequestDecided(ctx context.Context, to, letterType, status, adminNotes string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	subject := fmt.Sprintf("Your %s letter request was %s", letterType, status)
	body := fmt.Sprintf("Your letter request has been %s.", status)
	if strings.TrimSpace(adminNotes) != "" {
		body += "\n\nNotes: " + adminNotes
	}
	if err := s.Mailer.Send(ctx, s.From, to, subject, body); err != nil {
		slog.Warn("decision notification failed", "to", to, "err", err)
	}
}

func (s *Service) PasswordReset(ctx context.Context, to, token string) {
	subject := "Password reset"
	body := fmt.Sprintf("Use this token to reset your password within the next hour: %s", token)
	if err := s.Mailer.Send(ctx, s.From, to, subject, body); err != nil {
		slog.Warn("password reset email failed", "to", to, "err", err)
	}
}
