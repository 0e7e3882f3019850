package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/model"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/repository"
)

type submissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates the Postgres-backed submission store.
func NewSubmissionRepository(db *sqlx.DB) repository.SubmissionRepository {
	return &submissionRepository{db: db}
}

// submissionRow flattens the nested model for sqlx scanning.
type submissionRow struct {
	ID          uuid.UUID       `db:"id"`
	FormKind    string          `db:"form_kind"`
	Name        string          `db:"name"`
	Email       string          `db:"email"`
	Phone       string          `db:"phone"`
	Message     string          `db:"message"`
	RawPayload  json.RawMessage `db:"raw_payload"`
	EventID     string          `db:"event_id"`
	EventType   string          `db:"event_type"`
	FormType    string          `db:"form_type"`
	Status      string          `db:"status"`
	LastError   *string         `db:"last_error"`
	Attempts    int             `db:"attempts"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	DeliveredAt *time.Time      `db:"delivered_at"`
}

func (r submissionRow) toModel() *model.Submission {
	return &model.Submission{
		ID:       r.ID,
		FormKind: model.FormKind(r.FormKind),
		Contact: model.Contact{
			Name:    r.Name,
			Email:   r.Email,
			Phone:   r.Phone,
			Message: r.Message,
		},
		RawPayload: r.RawPayload,
		EventMeta: model.EventMeta{
			EventID:   r.EventID,
			EventType: r.EventType,
			FormType:  r.FormType,
		},
		Status:      model.SubmissionStatus(r.Status),
		LastError:   r.LastError,
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DeliveredAt: r.DeliveredAt,
	}
}

func (r *submissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil {
		return fmt.Errorf("submission cannot be nil")
	}

	query := `
		INSERT INTO submissions (
			id, form_kind, name, email, phone, message, raw_payload,
			event_id, event_type, form_type, status, attempts,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.FormKind,
		sub.Contact.Name,
		sub.Contact.Email,
		sub.Contact.Phone,
		sub.Contact.Message,
		sub.RawPayload,
		sub.EventMeta.EventID,
		sub.EventMeta.EventType,
		sub.EventMeta.FormType,
		sub.Status,
		sub.Attempts,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SubmissionStatus, lastError *string, attempts int) error {
	query := `
		UPDATE submissions
		SET status = $1,
			last_error = $2,
			attempts = $3,
			delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
			updated_at = NOW()
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, status, lastError, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *submissionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	query := `
		SELECT id, form_kind, name, email, phone, message, raw_payload,
			event_id, event_type, form_type, status, last_error, attempts,
			created_at, updated_at, delivered_at
		FROM submissions
		WHERE id = $1
	`
	var row submissionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return row.toModel(), nil
}

func (r *submissionRepository) List(ctx context.Context, filter model.SubmissionFilter) ([]*model.Submission, error) {
	query := `
		SELECT id, form_kind, name, email, phone, message, raw_payload,
			event_id, event_type, form_type, status, last_error, attempts,
			created_at, updated_at, delivered_at
		FROM submissions
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR form_kind = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []submissionRow
	if err := r.db.SelectContext(ctx, &rows, query, string(filter.Status), string(filter.FormKind), limit); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	subs := make([]*model.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toModel())
	}
	return subs, nil
}
