// Package notifier is the out-of-band alert path used when webhook
// delivery is exhausted. Best effort: one attempt, no retries, and a
// failure here never reaches the submitting client.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/delivery"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

// Notifier alerts a human when a lead could not be forwarded.
type Notifier interface {
	NotifyFailure(ctx context.Context, sub *model.Submission, res delivery.Result)
}

// Config holds SMTP settings. An empty Host or To disables the notifier
// entirely; that is a valid configuration, not an error.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func (c Config) enabled() bool {
	return c.Host != "" && c.To != ""
}

// EmailNotifier sends the fallback alert over SMTP via gomail.
type EmailNotifier struct {
	cfg     Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	// send is swapped out in tests.
	send func(*gomail.Message) error
}

func NewEmailNotifier(cfg Config, log *logger.Logger, m *metrics.Metrics) *EmailNotifier {
	n := &EmailNotifier{
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}
	n.send = func(msg *gomail.Message) error {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		return d.DialAndSend(msg)
	}
	return n
}

// NotifyFailure emails the stored lead to the configured recipient. It
// never returns an error: the outcome for the submitting client is
// already final, so all that is left is to log what happened.
func (n *EmailNotifier) NotifyFailure(_ context.Context, sub *model.Submission, res delivery.Result) {
	if !n.cfg.enabled() {
		n.logger.Debug("fallback notifier not configured, skipping",
			"submission_id", sub.ID.String())
		n.metrics.FallbackNotifications.WithLabelValues("skipped").Inc()
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.cfg.From)
	msg.SetHeader("To", n.cfg.To)
	msg.SetHeader("Subject", fmt.Sprintf("Lead delivery failed: %s (%s)", sub.EventMeta.FormType, sub.ID))
	msg.SetBody("text/plain", n.body(sub, res))

	if err := n.send(msg); err != nil {
		n.logger.Error(err, "fallback notification failed",
			"submission_id", sub.ID.String())
		n.metrics.FallbackNotifications.WithLabelValues("failed").Inc()
		return
	}

	n.logger.Info("fallback notification sent",
		"submission_id", sub.ID.String(), "to", n.cfg.To)
	n.metrics.FallbackNotifications.WithLabelValues("sent").Inc()
}

func (n *EmailNotifier) body(sub *model.Submission, res delivery.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Webhook delivery failed after %d attempt(s).\n\n", res.Attempts)
	if res.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n\n", res.LastError)
	}
	fmt.Fprintf(&b, "Submission %s (%s) at %s\n\n", sub.ID, sub.EventMeta.FormType, sub.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if sub.Contact.Name != "" {
		fmt.Fprintf(&b, "Name:  %s\n", sub.Contact.Name)
	}
	fmt.Fprintf(&b, "Email: %s\n", sub.Contact.Email)
	if sub.Contact.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", sub.Contact.Phone)
	}
	if sub.Contact.Message != "" {
		fmt.Fprintf(&b, "\nMessage:\n%s\n", sub.Contact.Message)
	}
	fmt.Fprintf(&b, "\nRaw payload:\n%s\n", string(sub.RawPayload))
	b.WriteString("\nThe lead is stored and can be reconciled from the submissions listing.\n")
	return b.String()
}
