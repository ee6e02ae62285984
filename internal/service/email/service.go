package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v3"

	"rentcore/internal/config"
	"rentcore/internal/pkg/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// Decision describes an approve/reject outcome mailed to the requester.
type Decision struct {
	ToEmail  string
	Name     string
	Title    string
	Message  string
	Approved bool
	Reason   *string
	StartAt  time.Time
	EndAt    time.Time
}

type Service interface {
	SendDecisionEmail(ctx context.Context, d Decision) error
}

// Sender is the part of the resend client used to deliver mail.
type Sender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type service struct {
	sender Sender
	config *config.Config
	tmpl   *template.Template
}

// NewService delivers through Resend. Without an API key mail is only
// logged, which keeps local setups free of outbound calls.
func NewService(cfg *config.Config) Service {
	if cfg.ResendAPIKey == "" {
		return NewServiceWithSender(logSender{}, cfg)
	}
	client := resend.NewClient(cfg.ResendAPIKey)
	return NewServiceWithSender(client.Emails, cfg)
}

type logSender struct{}

func (logSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	slog.Debug("email delivery disabled", "to", params.To, "subject", params.Subject)
	return &resend.SendEmailResponse{}, nil
}

func NewServiceWithSender(sender Sender, cfg *config.Config) Service {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/decision.html"))
	return &service{
		sender: sender,
		config: cfg,
		tmpl:   tmpl,
	}
}

func (s *service) render(data interface{}) (string, error) {
	var body bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return body.String(), nil
}

func (s *service) SendDecisionEmail(ctx context.Context, d Decision) error {
	locale := s.config.DefaultLocale
	color := "#10b981"
	var reason string
	if !d.Approved {
		color = "#ef4444"
		if d.Reason != nil {
			reason = i18n.Format(locale, "email.reason", map[string]string{"reason": *d.Reason})
		}
	}

	data := struct {
		Locale  string
		Title   string
		Name    string
		Message string
		Window  string
		Reason  string
		Color   string
		Link    string
	}{
		Locale:  locale,
		Title:   d.Title,
		Name:    d.Name,
		Message: d.Message,
		Window: i18n.Format(locale, "email.window", map[string]string{
			"start": d.StartAt.Format("2006-01-02 15:04"),
			"end":   d.EndAt.Format("2006-01-02 15:04"),
		}),
		Reason: reason,
		Color:  color,
		Link:   fmt.Sprintf("https://%s/my/status", s.config.Domain),
	}

	html, err := s.render(data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("RentCore <%s>", s.config.FromEmail),
		To:      []string{d.ToEmail},
		Html:    html,
		Subject: i18n.Format(locale, "email.subject", map[string]string{"title": d.Title}),
	}

	_, err = s.sender.Send(params)
	return err
}
