// Package memory holds submissions in process memory. Used when no
// database is configured; retention then lasts only as long as the
// process, which is acceptable because the webhook and fallback paths
// remain the channels of record.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
)

type submissionRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*model.Submission
}

// NewSubmissionRepository creates the in-memory submission store.
func NewSubmissionRepository() repository.SubmissionRepository {
	return &submissionRepository{
		subs: make(map[uuid.UUID]*model.Submission),
	}
}

func (r *submissionRepository) Create(_ context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *sub
	r.subs[sub.ID] = &clone
	return nil
}

func (r *submissionRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.SubmissionStatus, lastError *string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return repository.ErrNotFound
	}

	now := time.Now()
	sub.Status = status
	sub.LastError = lastError
	sub.Attempts = attempts
	sub.UpdatedAt = now
	if status == model.SubmissionStatusDelivered && sub.DeliveredAt == nil {
		sub.DeliveredAt = &now
	}
	return nil
}

func (r *submissionRepository) Get(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *sub
	return &clone, nil
}

func (r *submissionRepository) List(_ context.Context, filter model.SubmissionFilter) ([]*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	subs := make([]*model.Submission, 0, len(r.subs))
	for _, sub := range r.subs {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		if filter.FormKind != "" && sub.FormKind != filter.FormKind {
			continue
		}
		clone := *sub
		subs = append(subs, &clone)
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}
