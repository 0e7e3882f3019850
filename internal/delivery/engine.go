// Package delivery forwards accepted submissions to the configured
// webhook endpoint with bounded retries. The store is updated after
// every attempt so an operator can always see how far a lead got.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

const (
	headerSubmissionID = "X-Submission-ID"
	headerWebhookType  = "X-Webhook-Type"
	headerAttempt      = "X-Attempt"

	userAgent       = "mount-vernon-lofts/lead-pipeline"
	envelopeSource  = "mount-vernon-lofts-website"
	envelopeVersion = "2.0"
)

// Config holds delivery engine configuration.
type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
}

// Result is the outcome of a delivery run.
type Result struct {
	Delivered bool
	Attempts  int
	LastError string
}

// envelope is the JSON body POSTed to the webhook.
type envelope struct {
	FormType  string          `json:"formType"`
	Contact   model.Contact   `json:"contact"`
	Data      json.RawMessage `json:"data"`
	EventMeta model.EventMeta `json:"eventMeta"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
}

// Engine delivers submissions over HTTP with exponential backoff.
type Engine struct {
	cfg     Config
	client  *http.Client
	repo    repository.SubmissionRepository
	logger  *logger.Logger
	metrics *metrics.Metrics

	// sleep is swapped out in tests so backoff is observable without
	// real waiting.
	sleep func(time.Duration)
}

// NewEngineWithSleep builds an engine with a custom backoff sleeper.
// Used by tests that exercise the full retry loop.
func NewEngineWithSleep(cfg Config, repo repository.SubmissionRepository, log *logger.Logger, m *metrics.Metrics, sleep func(time.Duration)) *Engine {
	e := NewEngine(cfg, repo, log, m)
	e.sleep = sleep
	return e
}

func NewEngine(cfg Config, repo repository.SubmissionRepository, log *logger.Logger, m *metrics.Metrics) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Engine{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		repo:    repo,
		logger:  log,
		metrics: m,
		sleep:   time.Sleep,
	}
}

// Deliver POSTs the submission to the webhook, retrying up to
// MaxAttempts with 1s/2s backoff between attempts. An unset endpoint is
// a configuration state, not an error: delivery is skipped entirely and
// control proceeds to the fallback path.
func (e *Engine) Deliver(ctx context.Context, sub *model.Submission) Result {
	if e.cfg.Endpoint == "" {
		e.logger.Warn("webhook endpoint not configured, skipping delivery",
			"submission_id", sub.ID.String())
		return Result{Delivered: false, Attempts: 0}
	}

	timer := prometheus.NewTimer(e.metrics.DeliveryLatency)
	defer timer.ObserveDuration()

	body, err := json.Marshal(envelope{
		FormType:  sub.EventMeta.FormType,
		Contact:   sub.Contact,
		Data:      sub.RawPayload,
		EventMeta: sub.EventMeta,
		Timestamp: sub.CreatedAt.UTC().Format(time.RFC3339),
		Source:    envelopeSource,
		Version:   envelopeVersion,
	})
	if err != nil {
		// Submission content is already validated, so this only fires
		// on a programming error.
		return Result{Delivered: false, Attempts: 0, LastError: fmt.Sprintf("marshal envelope: %v", err)}
	}

	var lastErr string
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		e.metrics.DeliveryAttempts.Inc()

		attemptErr := e.attempt(ctx, sub, body, attempt)
		if attemptErr == nil {
			e.updateStatus(ctx, sub, model.SubmissionStatusDelivered, nil, attempt)
			e.logger.Info("webhook delivered",
				"submission_id", sub.ID.String(), "attempt", attempt)
			return Result{Delivered: true, Attempts: attempt}
		}

		lastErr = attemptErr.Error()
		e.metrics.DeliveryFailures.Inc()
		e.logger.Warn("webhook delivery attempt failed",
			"submission_id", sub.ID.String(), "attempt", attempt, "error", lastErr)

		e.updateStatus(ctx, sub, model.SubmissionStatusPending, &lastErr, attempt)

		if attempt < e.cfg.MaxAttempts {
			e.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
	}

	e.metrics.DeliveryExhausted.Inc()
	return Result{Delivered: false, Attempts: e.cfg.MaxAttempts, LastError: lastErr}
}

func (e *Engine) attempt(ctx context.Context, sub *model.Submission, body []byte, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerSubmissionID, sub.ID.String())
	req.Header.Set(headerWebhookType, sub.EventMeta.FormType)
	req.Header.Set(headerAttempt, strconv.Itoa(attempt))

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

// updateStatus relays per-attempt state to the store. A missing id is
// logged and swallowed: the delivery outcome must reach the caller even
// if the store lost the record.
func (e *Engine) updateStatus(ctx context.Context, sub *model.Submission, status model.SubmissionStatus, lastError *string, attempts int) {
	if err := e.repo.UpdateStatus(ctx, sub.ID, status, lastError, attempts); err != nil {
		e.logger.Error(err, "failed to update submission status",
			"submission_id", sub.ID.String(), "status", string(status))
	}
}
