package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/abuse"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/delivery"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository/memory"
	apperrors "github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/errors"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

// stubDeliverer returns a canned result and records what it saw.
type stubDeliverer struct {
	result    delivery.Result
	delivered []*model.Submission
	onDeliver func(sub *model.Submission)
}

func (d *stubDeliverer) Deliver(_ context.Context, sub *model.Submission) delivery.Result {
	d.delivered = append(d.delivered, sub)
	if d.onDeliver != nil {
		d.onDeliver(sub)
	}
	return d.result
}

// stubNotifier counts fallback invocations.
type stubNotifier struct {
	calls int
	last  delivery.Result
}

func (n *stubNotifier) NotifyFailure(_ context.Context, _ *model.Submission, res delivery.Result) {
	n.calls++
	n.last = res
}

type fixture struct {
	svc      Service
	repo     repository.SubmissionRepository
	engine   *stubDeliverer
	notifier *stubNotifier
}

func newFixture(t *testing.T, cfg Config, result delivery.Result) *fixture {
	t.Helper()
	repo := memory.NewSubmissionRepository()
	engine := &stubDeliverer{result: result}
	fallback := &stubNotifier{}
	filter := abuse.NewFilter(abuse.NewMemoryRateStore(5, 15*time.Minute), logger.Nop())
	svc := NewService(cfg, repo, filter, engine, fallback, logger.Nop(), metrics.New("test", prometheus.NewRegistry()))
	return &fixture{svc: svc, repo: repo, engine: engine, notifier: fallback}
}

func contactReq() *model.ContactRequest {
	return &model.ContactRequest{
		AntiAbuseFields: model.AntiAbuseFields{
			RenderedAt: time.Now().Add(-10 * time.Second).UnixMilli(),
		},
		Name:    "Jordan Baker",
		Email:   "jordan@example.com",
		Phone:   "555-0100",
		Message: "interested in unit 4B",
	}
}

func recordCount(t *testing.T, repo repository.SubmissionRepository) int {
	t.Helper()
	subs, err := repo.List(context.Background(), model.SubmissionFilter{})
	require.NoError(t, err)
	return len(subs)
}

func TestSubmitHappyPath(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{Delivered: true, Attempts: 1})

	out, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.True(t, out.WebhookDelivered)
	assert.NotEmpty(t, out.SubmissionID)
	assert.GreaterOrEqual(t, out.ProcessingTime, int64(0))
	assert.Len(t, f.engine.delivered, 1)
	assert.Zero(t, f.notifier.calls, "no fallback on successful delivery")
}

func TestSubmitPersistsBeforeDelivery(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{Delivered: true, Attempts: 1})

	var statusAtDelivery model.SubmissionStatus
	f.engine.onDeliver = func(sub *model.Submission) {
		stored, err := f.repo.Get(context.Background(), sub.ID)
		require.NoError(t, err, "record must exist before the network attempt")
		statusAtDelivery = stored.Status
	}

	_, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusPending, statusAtDelivery)
}

func TestSubmitExhaustionTriggersFallback(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{
		Delivered: false,
		Attempts:  3,
		LastError: "HTTP 503: Service Unavailable",
	})

	out, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)

	// The intake itself succeeded; only delivery failed.
	assert.True(t, out.Success)
	assert.False(t, out.WebhookDelivered)
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, "HTTP 503: Service Unavailable", f.notifier.last.LastError)

	subs, err := f.repo.List(context.Background(), model.SubmissionFilter{Status: model.SubmissionStatusFailed})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].LastError)
	assert.Equal(t, "HTTP 503: Service Unavailable", *subs[0].LastError)
	assert.Equal(t, 3, subs[0].Attempts)
}

func TestSubmitSkippedDeliveryStillFallsBack(t *testing.T) {
	// No webhook endpoint configured: zero attempts, but a human still
	// gets alerted.
	f := newFixture(t, Config{}, delivery.Result{Delivered: false, Attempts: 0})

	out, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.False(t, out.WebhookDelivered)
	assert.Equal(t, 1, f.notifier.calls)
	assert.Zero(t, f.notifier.last.Attempts)
}

func TestSubmitHoneypotNotPersisted(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{Delivered: true, Attempts: 1})

	req := contactReq()
	req.Website = "http://spam.example.com"

	_, err := f.svc.Submit(context.Background(), req, "1.2.3.4")
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrRejected, appErr.Code)
	assert.Equal(t, abuse.ReasonHoneypot, appErr.Message)
	assert.Zero(t, recordCount(t, f.repo), "spam is not persisted as a lead")
	assert.Empty(t, f.engine.delivered)
}

func TestSubmitRateLimitSixthRejected(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{Delivered: true, Attempts: 1})

	for i := 0; i < 5; i++ {
		_, err := f.svc.Submit(context.Background(), contactReq(), "9.9.9.9")
		require.NoError(t, err, "submission %d should pass", i+1)
	}

	_, err := f.svc.Submit(context.Background(), contactReq(), "9.9.9.9")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, abuse.ReasonRateLimited, appErr.Message)
	assert.Equal(t, 5, recordCount(t, f.repo))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, Config{}, delivery.Result{Delivered: true, Attempts: 1})

	t.Run("malformed email", func(t *testing.T) {
		req := contactReq()
		req.Email = "not-an-email"
		_, err := f.svc.Submit(context.Background(), req, "1.2.3.4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email must be a valid email address")
	})

	t.Run("missing message", func(t *testing.T) {
		req := contactReq()
		req.Message = ""
		_, err := f.svc.Submit(context.Background(), req, "1.2.3.4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "message is required")
	})

	t.Run("broker sign-in requires brokerage", func(t *testing.T) {
		req := &model.SignInRequest{
			AntiAbuseFields: model.AntiAbuseFields{RenderedAt: time.Now().Add(-10 * time.Second).UnixMilli()},
			Name:            "Jordan Baker",
			Email:           "jordan@example.com",
			Phone:           "555-0100",
			EventID:         "oh-2026-03",
			EventType:       model.EventTypeBroker,
		}
		_, err := f.svc.Submit(context.Background(), req, "1.2.3.4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "brokerage is required for broker events")
		assert.Zero(t, recordCount(t, f.repo))
	})

	t.Run("public sign-in allows empty brokerage", func(t *testing.T) {
		req := &model.SignInRequest{
			AntiAbuseFields: model.AntiAbuseFields{RenderedAt: time.Now().Add(-10 * time.Second).UnixMilli()},
			Name:            "Jordan Baker",
			Email:           "jordan+signin@example.com",
			Phone:           "555-0100",
			EventID:         "oh-2026-03",
			EventType:       model.EventTypePublic,
			VisitedBefore:   "no",
			HasActiveBuyer:  "maybe",
		}
		_, err := f.svc.Submit(context.Background(), req, "2.3.4.5")
		assert.NoError(t, err)
	})

	t.Run("feedback likelihood out of range", func(t *testing.T) {
		req := &model.FeedbackRequest{
			AntiAbuseFields:   model.AntiAbuseFields{RenderedAt: time.Now().Add(-10 * time.Second).UnixMilli()},
			Email:             "jordan@example.com",
			PricingComparison: "about_right",
			LikelihoodToBring: 6,
		}
		_, err := f.svc.Submit(context.Background(), req, "1.2.3.4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "likelihoodToBring must be at most 5")
	})

	t.Run("feedback likelihood at boundary", func(t *testing.T) {
		req := &model.FeedbackRequest{
			AntiAbuseFields:   model.AntiAbuseFields{RenderedAt: time.Now().Add(-10 * time.Second).UnixMilli()},
			Email:             "jordan+feedback@example.com",
			PricingComparison: "about_right",
			LikelihoodToBring: 5,
			StandoutUnits:     []string{"4B", "PH1"},
		}
		_, err := f.svc.Submit(context.Background(), req, "3.4.5.6")
		assert.NoError(t, err)
	})
}

func TestSubmitStoreFailureIsFatal(t *testing.T) {
	repo := &failingRepo{}
	filter := abuse.NewFilter(abuse.NewMemoryRateStore(5, 15*time.Minute), logger.Nop())
	engine := &stubDeliverer{result: delivery.Result{Delivered: true, Attempts: 1}}
	fallback := &stubNotifier{}
	svc := NewService(Config{}, repo, filter, engine, fallback, logger.Nop(), metrics.New("test", prometheus.NewRegistry()))

	_, err := svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrInternal, appErr.Code)
	assert.True(t, appErr.Retryable)
	assert.Empty(t, engine.delivered, "no delivery attempt without a durable record")
}

func TestSubmitDedupReturnsOriginalOutcome(t *testing.T) {
	f := newFixture(t, Config{DedupTTL: time.Minute}, delivery.Result{Delivered: true, Attempts: 1})

	first, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)

	second, err := f.svc.Submit(context.Background(), contactReq(), "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, first.SubmissionID, second.SubmissionID)
	assert.Equal(t, 1, recordCount(t, f.repo), "resubmission must not duplicate the record")
}

// failingRepo simulates a store that cannot write.
type failingRepo struct{}

func (r *failingRepo) Create(context.Context, *model.Submission) error {
	return errors.New("disk full")
}

func (r *failingRepo) UpdateStatus(context.Context, uuid.UUID, model.SubmissionStatus, *string, int) error {
	return errors.New("disk full")
}

func (r *failingRepo) Get(context.Context, uuid.UUID) (*model.Submission, error) {
	return nil, repository.ErrNotFound
}

func (r *failingRepo) List(context.Context, model.SubmissionFilter) ([]*model.Submission, error) {
	return nil, nil
}
