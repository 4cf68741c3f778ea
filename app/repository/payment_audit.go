package repository

import (
	"context"

	"github.com/civicstack/ms-go-payflow/app/entity"
)

// PaymentAuditRepository is append-only: entries are never updated or
// deleted, one row per observed gateway status.
type PaymentAuditRepository struct {
	db DBTX
}

func NewPaymentAuditRepository(db DBTX) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

func (r *PaymentAuditRepository) Create(ctx context.Context, entry *entity.PaymentAuditEntry) error {
	query := `
		INSERT INTO payment_audit (
			govpay_payment_id, session_id, flow_id, team_slug,
			status, amount_pence, provider, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.GovPayPaymentID,
		entry.SessionID,
		entry.FlowID,
		entry.TeamSlug,
		entry.Status,
		entry.AmountPence,
		entry.Provider,
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)
	return nil
}
