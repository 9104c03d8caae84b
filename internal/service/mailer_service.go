package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/candidate-identity-service/internal/config"
)

// MailTemplate identifies a message template.
type MailTemplate string

const (
	TemplateVerifyAccount             MailTemplate = "verify_account_email"
	TemplateResetPassword             MailTemplate = "reset_password"
	TemplatePasswordResetConfirmation MailTemplate = "password_reset_confirmation"
	TemplateActivateAccount           MailTemplate = "activate_account"
)

// Mail carries everything needed to render and deliver one message.
type Mail struct {
	To            string       `json:"to"`
	DisplayName   string       `json:"display_name"`
	Template      MailTemplate `json:"template"`
	ActivationURL string       `json:"activation_url,omitempty"`
	Code          string       `json:"code,omitempty"`
	Subject       string       `json:"subject"`
	Body          string       `json:"body,omitempty"`
}

// Mailer delivers templated messages to a candidate's email address.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// MailerService delivers mail through the configured delivery webhook and
// logs every send. With no webhook configured it is log-only, which keeps
// development environments working without a mail relay.
type MailerService struct {
	logger *zap.Logger
	cfg    config.MailConfig
	client *http.Client
}

// NewMailerService creates the service.
func NewMailerService(logger *zap.Logger, cfg config.MailConfig) *MailerService {
	return &MailerService{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers the mail, returning an error when the delivery endpoint rejects it.
func (m *MailerService) Send(ctx context.Context, mail Mail) error {
	m.logger.Info("sending mail",
		zap.String("to", mail.To),
		zap.String("template", string(mail.Template)),
		zap.String("subject", mail.Subject))

	if strings.TrimSpace(m.cfg.WebhookURL) == "" {
		return nil
	}

	payload, err := json.Marshal(struct {
		From string `json:"from"`
		Mail
	}{From: m.cfg.From, Mail: mail})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail delivery endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
