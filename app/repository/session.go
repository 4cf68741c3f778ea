package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/civicstack/ms-go-payflow/app/entity"
	"github.com/civicstack/ms-go-payflow/app/gateway"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	query := `
		SELECT id, flow_id, team_slug, locked_at, data, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	var lockedAt sql.NullTime
	var dataJSON sql.NullString
	session := &entity.Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.FlowID,
		&session.TeamSlug,
		&lockedAt,
		&dataJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	session.LockedAt = timePtrFromNull(lockedAt)
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &session.Data); err != nil {
			return nil, err
		}
	}

	return session, nil
}

// Lock is the subsystem's only concurrency primitive: a conditional update
// that acquires the lock only when no one holds it. Returns whether the
// caller acquired it.
func (r *SessionRepository) Lock(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET locked_at = ?, updated_at = ?
		WHERE id = ? AND locked_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Unlock unconditionally clears the lock. Used only as compensation after a
// failed multi-step creation.
func (r *SessionRepository) Unlock(ctx context.Context, id string) error {
	query := `
		UPDATE sessions
		SET locked_at = NULL, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// MergeGatewayPayment overwrites data.govPayment with the latest observation
// (last-write-wins). This is how abandoned-and-resumed payments recover.
func (r *SessionRepository) MergeGatewayPayment(ctx context.Context, id string, payment *gateway.Payment) error {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET data = JSON_SET(COALESCE(data, '{}'), '$.govPayment', CAST(? AS JSON)),
		    updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(paymentJSON), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// AppendGatewayPayment sets data.govPayment and unions any previously
// recorded payment with a different id into data.pastGovPayments. Used by
// mark-paid, where history of abandoned attempts must survive. Returns
// whether the session row existed.
func (r *SessionRepository) AppendGatewayPayment(ctx context.Context, id string, payment *gateway.Payment) (bool, error) {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	data := session.Data
	if data.GovPayment != nil && data.GovPayment.PaymentID != payment.PaymentID {
		data.PastGovPayments = append(data.PastGovPayments, data.GovPayment)
	}
	data.GovPayment = payment

	dataJSON, err := json.Marshal(&data)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE sessions
		SET data = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(dataJSON), time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
