package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AntiAbuseFields are carried by every form. Website is the honeypot:
// hidden from humans, so any value means a bot filled it. RenderedAt is
// the client-reported render time in unix milliseconds.
type AntiAbuseFields struct {
	Website    string `json:"website"`
	RenderedAt int64  `json:"renderedAt"`
}

// FormRequest is the kind-specific inbound payload. CrossValidate holds
// the checks validator tags cannot express (conditional requirements);
// Payload returns the kind-specific block preserved verbatim for the
// store and the forwarded envelope.
type FormRequest interface {
	Kind() FormKind
	ContactInfo() Contact
	Meta() EventMeta
	AntiAbuse() AntiAbuseFields
	Payload() map[string]interface{}
	CrossValidate() error
}

// ContactRequest is the general contact form.
type ContactRequest struct {
	AntiAbuseFields
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (r *ContactRequest) Kind() FormKind { return FormKindContact }

func (r *ContactRequest) ContactInfo() Contact {
	return Contact{Name: r.Name, Email: r.Email, Phone: r.Phone, Message: r.Message}
}

func (r *ContactRequest) Meta() EventMeta {
	return EventMeta{FormType: string(FormKindContact)}
}

func (r *ContactRequest) AntiAbuse() AntiAbuseFields { return r.AntiAbuseFields }

func (r *ContactRequest) Payload() map[string]interface{} {
	return map[string]interface{}{
		"message": r.Message,
	}
}

func (r *ContactRequest) CrossValidate() error { return nil }

// SignInRequest is the open-house sign-in form.
type SignInRequest struct {
	AntiAbuseFields
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required"`
	Brokerage      string `json:"brokerage"`
	VisitedBefore  string `json:"visitedBefore" validate:"omitempty,oneof=yes no"`
	HasActiveBuyer string `json:"hasActiveBuyer" validate:"omitempty,oneof=yes no maybe"`
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType" validate:"omitempty,oneof=public broker"`
}

func (r *SignInRequest) Kind() FormKind { return FormKindOpenHouseSignIn }

func (r *SignInRequest) ContactInfo() Contact {
	return Contact{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

func (r *SignInRequest) Meta() EventMeta {
	return EventMeta{EventID: r.EventID, EventType: r.EventType, FormType: string(FormKindOpenHouseSignIn)}
}

func (r *SignInRequest) AntiAbuse() AntiAbuseFields { return r.AntiAbuseFields }

func (r *SignInRequest) Payload() map[string]interface{} {
	return map[string]interface{}{
		"brokerage":      r.Brokerage,
		"visitedBefore":  r.VisitedBefore,
		"hasActiveBuyer": r.HasActiveBuyer,
	}
}

func (r *SignInRequest) CrossValidate() error {
	if r.EventType == EventTypeBroker && strings.TrimSpace(r.Brokerage) == "" {
		return fmt.Errorf("brokerage is required for broker events")
	}
	return nil
}

// FeedbackRequest is the open-house feedback form.
type FeedbackRequest struct {
	AntiAbuseFields
	Email             string   `json:"email" validate:"required,email"`
	PricingComparison string   `json:"pricingComparison" validate:"omitempty,oneof=below_market about_right above_market"`
	LikelihoodToBring int      `json:"likelihoodToBring" validate:"required,min=1,max=5"`
	StandoutUnits     []string `json:"standoutUnits"`
	EventID           string   `json:"eventId"`
	EventType         string   `json:"eventType" validate:"omitempty,oneof=public broker"`
}

func (r *FeedbackRequest) Kind() FormKind { return FormKindOpenHouseFeedback }

func (r *FeedbackRequest) ContactInfo() Contact {
	return Contact{Email: r.Email}
}

func (r *FeedbackRequest) Meta() EventMeta {
	return EventMeta{EventID: r.EventID, EventType: r.EventType, FormType: string(FormKindOpenHouseFeedback)}
}

func (r *FeedbackRequest) AntiAbuse() AntiAbuseFields { return r.AntiAbuseFields }

func (r *FeedbackRequest) Payload() map[string]interface{} {
	return map[string]interface{}{
		"pricingComparison": r.PricingComparison,
		"likelihoodToBring": r.LikelihoodToBring,
		"standoutUnits":     r.StandoutUnits,
	}
}

func (r *FeedbackRequest) CrossValidate() error { return nil }

// ValidationMessage renders the first validation failure as a
// field-specific message safe to return to the client.
func ValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	e := verrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
