// Package abuse rejects automated submissions before any persistence or
// network work happens. Rejection is the normal, expected outcome for
// bot traffic, never retried and never escalated.
package abuse

import (
	"context"
	"time"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/pkg/logger"
)

// Rejection reasons, surfaced to the caller as client errors.
const (
	ReasonHoneypot    = "honeypot"
	ReasonTooFast     = "too-fast"
	ReasonRateLimited = "rate-limited"
)

// MinDwell is the minimum render-to-submit time a human plausibly
// needs; anything faster never rendered the form.
const MinDwell = 3 * time.Second

// Candidate is the subset of a submission the filter looks at.
type Candidate struct {
	ClientID   string
	Honeypot   string
	RenderedAt time.Time
}

// Verdict is the filter decision. Reason is empty on accept.
type Verdict struct {
	Accepted bool
	Reason   string
}

func accept() Verdict              { return Verdict{Accepted: true} }
func reject(reason string) Verdict { return Verdict{Reason: reason} }

// Filter runs the honeypot, dwell-time, and rate-limit checks. Only the
// rate-limit check mutates shared state.
type Filter struct {
	store  RateStore
	logger *logger.Logger
	now    func() time.Time
}

func NewFilter(store RateStore, log *logger.Logger) *Filter {
	return &Filter{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Evaluate runs all three checks; all must pass for an accept. If the
// rate store itself errors (e.g. Redis is down), the submission is
// allowed through: losing a lead is worse than letting one extra
// request past the limiter.
func (f *Filter) Evaluate(ctx context.Context, c Candidate) Verdict {
	if c.Honeypot != "" {
		f.logger.Warn("honeypot tripped", "client_id", c.ClientID)
		return reject(ReasonHoneypot)
	}

	now := f.now()
	if !c.RenderedAt.IsZero() && now.Sub(c.RenderedAt) < MinDwell {
		f.logger.Warn("submitted too fast", "client_id", c.ClientID, "dwell", now.Sub(c.RenderedAt).String())
		return reject(ReasonTooFast)
	}

	allowed, err := f.store.Allow(ctx, c.ClientID, now)
	if err != nil {
		f.logger.Error(err, "rate store unavailable, allowing submission", "client_id", c.ClientID)
		return accept()
	}
	if !allowed {
		f.logger.Warn("rate limited", "client_id", c.ClientID)
		return reject(ReasonRateLimited)
	}

	return accept()
}
