package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository/memory"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/metrics"
)

func testSubmission(t *testing.T) *model.Submission {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"message": "interested in unit 4B"})
	require.NoError(t, err)
	return &model.Submission{
		ID:       uuid.New(),
		FormKind: model.FormKindContact,
		Contact: model.Contact{
			Name:    "Jordan Baker",
			Email:   "jordan@example.com",
			Phone:   "555-0100",
			Message: "interested in unit 4B",
		},
		RawPayload: raw,
		EventMeta:  model.EventMeta{FormType: string(model.FormKindContact)},
		Status:     model.SubmissionStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func newTestEngine(t *testing.T, endpoint string) (*Engine, *[]time.Duration) {
	t.Helper()
	repo := memory.NewSubmissionRepository()
	m := metrics.New("test", prometheus.NewRegistry())
	e := NewEngine(Config{Endpoint: endpoint, Timeout: 5 * time.Second, MaxAttempts: 3}, repo, logger.Nop(), m)

	var sleeps []time.Duration
	e.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return e, &sleeps
}

func TestDeliverFirstAttemptSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Submission-ID"))
		assert.Equal(t, "contact", r.Header.Get("X-Webhook-Type"))
		assert.Equal(t, "1", r.Header.Get("X-Attempt"))

		var env map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		assert.Equal(t, "contact", env["formType"])
		assert.Equal(t, "2.0", env["version"])
		assert.NotEmpty(t, env["timestamp"])
		assert.NotEmpty(t, env["source"])

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e, sleeps := newTestEngine(t, srv.URL)
	sub := testSubmission(t)
	require.NoError(t, e.repo.Create(context.Background(), sub))

	res := e.Deliver(context.Background(), sub)

	assert.True(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.LastError)
	assert.Empty(t, *sleeps, "no backoff after an immediate success")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stored, err := e.repo.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusDelivered, stored.Status)
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e, sleeps := newTestEngine(t, srv.URL)
	sub := testSubmission(t)
	require.NoError(t, e.repo.Create(context.Background(), sub))

	res := e.Deliver(context.Background(), sub)

	assert.True(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)

	stored, err := e.repo.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusDelivered, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
}

func TestDeliverExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, sleeps := newTestEngine(t, srv.URL)
	sub := testSubmission(t)
	require.NoError(t, e.repo.Create(context.Background(), sub))

	res := e.Deliver(context.Background(), sub)

	assert.False(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "HTTP 503: Service Unavailable", res.LastError)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps,
		"no wait after the final attempt")

	// The engine leaves the record pending with the evolving error; the
	// orchestrator writes the terminal failed status.
	stored, err := e.repo.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusPending, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "HTTP 503: Service Unavailable", *stored.LastError)
}

func TestDeliverTransportError(t *testing.T) {
	// Point at a closed server so the transport itself fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e, _ := newTestEngine(t, srv.URL)
	sub := testSubmission(t)
	require.NoError(t, e.repo.Create(context.Background(), sub))

	res := e.Deliver(context.Background(), sub)

	assert.False(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts)
	assert.NotEmpty(t, res.LastError)
}

func TestDeliverMissingEndpoint(t *testing.T) {
	e, sleeps := newTestEngine(t, "")
	sub := testSubmission(t)
	require.NoError(t, e.repo.Create(context.Background(), sub))

	res := e.Deliver(context.Background(), sub)

	assert.False(t, res.Delivered)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, res.LastError)
	assert.Empty(t, *sleeps)
}

func TestDeliverPersistenceBeforeNetwork(t *testing.T) {
	// The engine only updates status; it never creates records. A
	// delivery against an id the store has never seen must not panic
	// and must still report the network outcome.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e, _ := newTestEngine(t, srv.URL)
	sub := testSubmission(t)

	res := e.Deliver(context.Background(), sub)
	assert.True(t, res.Delivered)
}
