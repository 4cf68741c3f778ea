package entity

import "time"

// PaymentRequest is an invite-to-pay record: the applicant nominates a payee
// who completes payment later against the locked session.
type PaymentRequest struct {
	ID string

	SessionID string
	TeamSlug  string
	FlowID    string

	PayeeName     string
	PayeeEmail    string
	ApplicantName string

	// SessionPreview is a redacted copy of the session answers shown to the
	// payee so they can see what they are paying for.
	SessionPreview map[string]any

	GovPayPaymentID *string
	PaidAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *PaymentRequest) IsPaid() bool {
	return r.PaidAt != nil
}
