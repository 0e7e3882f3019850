package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FormKind tags the three intake forms the site exposes.
type FormKind string

const (
	FormKindContact           FormKind = "contact"
	FormKindOpenHouseSignIn   FormKind = "openhouse_signin"
	FormKindOpenHouseFeedback FormKind = "openhouse_feedback"
)

// SubmissionStatus is the delivery lifecycle of a stored submission.
// pending is the only initial state; delivered is terminal.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusDelivered SubmissionStatus = "delivered"
	SubmissionStatusFailed    SubmissionStatus = "failed"
)

// EventType distinguishes public open houses from broker events.
const (
	EventTypePublic = "public"
	EventTypeBroker = "broker"
)

// Contact holds the normalized contact fields shared by all form kinds.
type Contact struct {
	Name    string `json:"name,omitempty" db:"name"`
	Email   string `json:"email" db:"email"`
	Phone   string `json:"phone,omitempty" db:"phone"`
	Message string `json:"message,omitempty" db:"message"`
}

// EventMeta is open-house event metadata, passed through to storage and
// the forwarded payload unchanged.
type EventMeta struct {
	EventID   string `json:"eventId,omitempty" db:"event_id"`
	EventType string `json:"eventType,omitempty" db:"event_type"`
	FormType  string `json:"formType" db:"form_type"`
}

// Submission is one accepted form intake, tracked end to end. The
// record is written before any delivery attempt so a lead is never
// silently lost.
type Submission struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	FormKind    FormKind         `json:"form_kind" db:"form_kind"`
	Contact     Contact          `json:"contact" db:"contact"`
	RawPayload  json.RawMessage  `json:"raw_payload" db:"raw_payload"`
	EventMeta   EventMeta        `json:"event_meta" db:"event_meta"`
	Status      SubmissionStatus `json:"status" db:"status"`
	LastError   *string          `json:"last_error,omitempty" db:"last_error"`
	Attempts    int              `json:"attempts" db:"attempts"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
}

// SubmissionFilter narrows admin listings.
type SubmissionFilter struct {
	Status   SubmissionStatus `form:"status"`
	FormKind FormKind         `form:"form_kind"`
	Limit    int              `form:"limit"`
}
