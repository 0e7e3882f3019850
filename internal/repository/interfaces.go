package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
)

// ErrNotFound is returned when a submission id is unknown. Callers
// updating status treat it as log-and-continue, never fatal.
var ErrNotFound = errors.New("submission not found")

// SubmissionRepository durably records every accepted intake. Create
// must succeed before any delivery attempt begins; UpdateStatus is
// idempotent and last-write-wins.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SubmissionStatus, lastError *string, attempts int) error
	Get(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	List(ctx context.Context, filter model.SubmissionFilter) ([]*model.Submission, error)
}
