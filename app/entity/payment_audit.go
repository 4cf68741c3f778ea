package entity

import "time"

// PaymentAuditEntry is one observed gateway status. Append-only: a payment
// that is polled five times gets five rows.
type PaymentAuditEntry struct {
	ID uint64

	GovPayPaymentID string
	SessionID       string
	FlowID          string
	TeamSlug        string

	Status      string
	AmountPence int64
	Provider    string

	CreatedAt time.Time
}
