// services/notifier_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/promptpulse/pulse-workflows/internal/config"
)

type notifierService struct {
	mg             mailgun.Mailgun
	from           string
	templates      map[NotificationKind]string
	appURL         string
	unsubscribeURL string
}

// Subject lines per notification kind
var notificationSubjects = map[NotificationKind]string{
	NotificationSubmitted: "Your prompt batch was submitted",
	NotificationSucceeded: "Your prompt batch finished",
	NotificationFailed:    "Your prompt batch ran into a problem",
}

// NewNotifierService creates the Mailgun-backed email notifier
func NewNotifierService(cfg *config.Config) NotifierService {
	return &notifierService{
		mg:   mailgun.NewMailgun(cfg.Mailgun.Domain, cfg.Mailgun.APIKey),
		from: cfg.Mailgun.FromAddress,
		templates: map[NotificationKind]string{
			NotificationSubmitted: cfg.Mailgun.SubmittedTemplate,
			NotificationSucceeded: cfg.Mailgun.SucceededTemplate,
			NotificationFailed:    cfg.Mailgun.FailedTemplate,
		},
		appURL:         cfg.AppURL,
		unsubscribeURL: cfg.UnsubscribeURL,
	}
}

// Send delivers one templated email. Recipients without an address are a
// silent no-op so nightly jobs never email.
func (s *notifierService) Send(ctx context.Context, kind NotificationKind, to string, vars map[string]string) error {
	if to == "" {
		return nil
	}

	template, ok := s.templates[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind: %s", kind)
	}

	message := s.mg.NewMessage(s.from, notificationSubjects[kind], "", to)
	message.SetTemplate(template)

	for key, value := range vars {
		if err := message.AddTemplateVariable(key, value); err != nil {
			return fmt.Errorf("failed to add template variable %s: %w", key, err)
		}
	}
	if s.appURL != "" {
		if err := message.AddTemplateVariable("app_url", s.appURL); err != nil {
			return fmt.Errorf("failed to add app_url variable: %w", err)
		}
	}
	if s.unsubscribeURL != "" {
		if err := message.AddTemplateVariable("unsubscribe_url", s.unsubscribeURL); err != nil {
			return fmt.Errorf("failed to add unsubscribe_url variable: %w", err)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, _, err := s.mg.Send(sendCtx, message)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	fmt.Printf("[NotifierService] 📧 Sent %s email to %s\n", kind, to)
	return nil
}
