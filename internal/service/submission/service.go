// Package submission orchestrates the lead-capture pipeline: validate,
// filter, persist, deliver, and fall back, in that order. Validation
// and filtering happen before any persistence so spam never becomes a
// stored lead.
package submission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/abuse"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/delivery"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/notifier"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
	apperrors "github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/errors"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

// Outcome is the uniform result returned to the submitting client.
// WebhookDelivered can be false while Success is true: the intake
// itself succeeded and the lead is durably stored either way.
type Outcome struct {
	Success          bool   `json:"success"`
	SubmissionID     string `json:"submissionId"`
	WebhookDelivered bool   `json:"webhookDelivered"`
	ProcessingTime   int64  `json:"processingTime"`
}

// Deliverer is the delivery engine seam, stubbed in tests.
type Deliverer interface {
	Deliver(ctx context.Context, sub *model.Submission) delivery.Result
}

// Service runs the submission pipeline.
type Service interface {
	Submit(ctx context.Context, req model.FormRequest, clientID string) (*Outcome, error)
	List(ctx context.Context, filter model.SubmissionFilter) ([]*model.Submission, error)
}

// Config holds orchestrator settings.
type Config struct {
	// DedupTTL bounds how long a resubmitted identical form returns the
	// original outcome instead of creating a duplicate record. Zero
	// disables dedup.
	DedupTTL time.Duration
}

type service struct {
	repo     repository.SubmissionRepository
	filter   *abuse.Filter
	engine   Deliverer
	notifier notifier.Notifier
	validate *validator.Validate
	dedup    *cache.Cache
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	cfg Config,
	repo repository.SubmissionRepository,
	filter *abuse.Filter,
	engine Deliverer,
	fallback notifier.Notifier,
	log *logger.Logger,
	m *metrics.Metrics,
) Service {
	v := validator.New()
	// Report json field names in validation errors so the client sees
	// the name it actually sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	var dedup *cache.Cache
	if cfg.DedupTTL > 0 {
		dedup = cache.New(cfg.DedupTTL, 2*cfg.DedupTTL)
	}

	return &service{
		repo:     repo,
		filter:   filter,
		engine:   engine,
		notifier: fallback,
		validate: v,
		dedup:    dedup,
		logger:   log,
		metrics:  m,
	}
}

// Submit runs the full pipeline and always returns a definite outcome.
// A panic anywhere below is converted into a retryable server error at
// this boundary; if the record was already written its id is logged for
// later reconciliation.
func (s *service) Submit(ctx context.Context, req model.FormRequest, clientID string) (outcome *Outcome, err error) {
	start := time.Now()
	var submissionID uuid.UUID

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("%v", r), "panic in submission pipeline",
				"submission_id", submissionID.String(), "client_id", clientID)
			outcome = nil
			err = apperrors.NewInternal(fmt.Errorf("submission pipeline panic: %v", r))
		}
	}()

	// 1. Shape, enum, and range validation; fail fast before any
	// persistence.
	if verr := s.validate.Struct(req); verr != nil {
		return nil, apperrors.NewBadRequest(model.ValidationMessage(verr), verr)
	}
	if verr := req.CrossValidate(); verr != nil {
		return nil, apperrors.NewBadRequest(verr.Error(), verr)
	}

	// 2. Abuse filter; rejected traffic is never persisted as a lead.
	anti := req.AntiAbuse()
	var renderedAt time.Time
	if anti.RenderedAt > 0 {
		renderedAt = time.UnixMilli(anti.RenderedAt)
	}
	verdict := s.filter.Evaluate(ctx, abuse.Candidate{
		ClientID:   clientID,
		Honeypot:   anti.Website,
		RenderedAt: renderedAt,
	})
	if !verdict.Accepted {
		s.metrics.SubmissionsRejected.WithLabelValues(verdict.Reason).Inc()
		return nil, apperrors.NewRejected(verdict.Reason)
	}

	payload, merr := json.Marshal(req.Payload())
	if merr != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("marshal payload: %w", merr))
	}

	// A client that resubmits after a retryable error would otherwise
	// create a second record for the same lead.
	fp := s.fingerprint(req, clientID, payload)
	if s.dedup != nil {
		if prior, found := s.dedup.Get(fp); found {
			s.logger.Info("duplicate submission, returning original outcome",
				"client_id", clientID, "submission_id", prior.(*Outcome).SubmissionID)
			return prior.(*Outcome), nil
		}
	}

	// 3. Durable record, written before any network attempt.
	now := time.Now()
	sub := &model.Submission{
		ID:         uuid.New(),
		FormKind:   req.Kind(),
		Contact:    req.ContactInfo(),
		RawPayload: payload,
		EventMeta:  req.Meta(),
		Status:     model.SubmissionStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	submissionID = sub.ID

	if cerr := s.repo.Create(ctx, sub); cerr != nil {
		s.metrics.StoreOperations.WithLabelValues("create", "error").Inc()
		// Fail fast: better to lose a lead visibly than silently.
		return nil, apperrors.NewInternal(fmt.Errorf("failed to record submission: %w", cerr))
	}
	s.metrics.StoreOperations.WithLabelValues("create", "success").Inc()
	s.metrics.SubmissionsAccepted.WithLabelValues(string(req.Kind())).Inc()

	// 4. Webhook delivery with bounded retries.
	res := s.engine.Deliver(ctx, sub)

	// 5. Terminal failed status is written before the fallback runs.
	if !res.Delivered {
		var lastErr *string
		if res.LastError != "" {
			lastErr = &res.LastError
		}
		if uerr := s.repo.UpdateStatus(ctx, sub.ID, model.SubmissionStatusFailed, lastErr, res.Attempts); uerr != nil {
			s.logger.Error(uerr, "failed to record terminal status",
				"submission_id", sub.ID.String())
		}
		s.notifier.NotifyFailure(ctx, sub, res)
	}

	outcome = &Outcome{
		Success:          true,
		SubmissionID:     sub.ID.String(),
		WebhookDelivered: res.Delivered,
		ProcessingTime:   time.Since(start).Milliseconds(),
	}
	if s.dedup != nil {
		s.dedup.SetDefault(fp, outcome)
	}
	return outcome, nil
}

func (s *service) List(ctx context.Context, filter model.SubmissionFilter) ([]*model.Submission, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) fingerprint(req model.FormRequest, clientID string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(req.Kind()))
	h.Write([]byte{0})
	h.Write([]byte(req.ContactInfo().Email))
	h.Write([]byte{0})
	h.Write([]byte(clientID))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
