package entity

import (
	"time"

	"github.com/civicstack/ms-go-payflow/app/gateway"
)

// SessionData is the opaque blob stored on the session row. Answers belong
// to the form runner; this service only maintains the payment fields.
type SessionData struct {
	Answers         map[string]any     `json:"answers,omitempty"`
	GovPayment      *gateway.Payment   `json:"govPayment,omitempty"`
	PastGovPayments []*gateway.Payment `json:"pastGovPayments,omitempty"`
}

// Session is one applicant's form-filling record. Sessions are created by
// the form runner and never deleted here; this service only mutates the
// lock marker and the payment portion of the data blob.
type Session struct {
	ID string

	FlowID   string
	TeamSlug string

	LockedAt *time.Time
	Data     SessionData

	CreatedAt time.Time
	UpdatedAt time.Time
}
