package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/civicstack/ms-go-payflow/app/entity"
)

var (
	ErrPaymentRequestNotFound      = errors.New("payment request not found")
	ErrPaymentRequestAlreadyExists = errors.New("payment request already exists")
)

type PaymentRequestRepository struct {
	db DBTX
}

func NewPaymentRequestRepository(db DBTX) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

func (r *PaymentRequestRepository) Create(ctx context.Context, request *entity.PaymentRequest) error {
	previewJSON, err := serializePreview(request.SessionPreview)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_requests (
			id, session_id, team_slug, flow_id,
			payee_name, payee_email, applicant_name,
			session_preview_json, govpay_payment_id, paid_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		request.ID,
		request.SessionID,
		request.TeamSlug,
		request.FlowID,
		request.PayeeName,
		request.PayeeEmail,
		request.ApplicantName,
		previewJSON,
		nullableStringValue(request.GovPayPaymentID),
		nullableTimeValue(request.PaidAt),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentRequestAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PaymentRequestRepository) FindByID(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	query := `
		SELECT id, session_id, team_slug, flow_id,
			payee_name, payee_email, applicant_name,
			session_preview_json, govpay_payment_id, paid_at,
			created_at, updated_at
		FROM payment_requests
		WHERE id = ?
	`

	request := &entity.PaymentRequest{}
	if err := scanPaymentRequest(r.db.QueryRowContext(ctx, query, id), request); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return request, nil
}

// AttachGatewayPayment records the gateway payment id the nominee's pay
// attempt produced. Refused once the request is paid.
func (r *PaymentRequestRepository) AttachGatewayPayment(ctx context.Context, id, paymentID string, at time.Time) error {
	query := `
		UPDATE payment_requests
		SET govpay_payment_id = ?, updated_at = ?
		WHERE id = ? AND paid_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, paymentID, at, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentRequestNotFound
	}

	return nil
}

// MarkPaid sets paid_at once, and only for the payment id currently attached
// to the request. Returns whether a row transitioned.
func (r *PaymentRequestRepository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	query := `
		UPDATE payment_requests
		SET paid_at = ?, updated_at = ?
		WHERE id = ? AND paid_at IS NULL AND govpay_payment_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, at, at, id, paymentID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListUnpaidWithPayment returns requests that have a gateway payment but no
// paid_at, untouched since before. Feed for the reconcile job.
func (r *PaymentRequestRepository) ListUnpaidWithPayment(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRequest, error) {
	query := `
		SELECT id, session_id, team_slug, flow_id,
			payee_name, payee_email, applicant_name,
			session_preview_json, govpay_payment_id, paid_at,
			created_at, updated_at
		FROM payment_requests
		WHERE paid_at IS NULL
		  AND govpay_payment_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*entity.PaymentRequest, 0)
	for rows.Next() {
		item := &entity.PaymentRequest{}
		if err := scanPaymentRequest(rows, item); err != nil {
			return nil, err
		}
		requests = append(requests, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRequest(scan rowScanner, request *entity.PaymentRequest) error {
	var previewJSON string
	var govPayPaymentID sql.NullString
	var paidAt sql.NullTime

	err := scan.Scan(
		&request.ID,
		&request.SessionID,
		&request.TeamSlug,
		&request.FlowID,
		&request.PayeeName,
		&request.PayeeEmail,
		&request.ApplicantName,
		&previewJSON,
		&govPayPaymentID,
		&paidAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return err
	}

	request.GovPayPaymentID = stringPtrFromNull(govPayPaymentID)
	request.PaidAt = timePtrFromNull(paidAt)

	preview, err := parsePreview(previewJSON)
	if err != nil {
		return err
	}
	request.SessionPreview = preview

	return nil
}

func serializePreview(preview map[string]any) (string, error) {
	if preview == nil {
		preview = map[string]any{}
	}
	payload, err := json.Marshal(preview)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parsePreview(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var preview map[string]any
	if err := json.Unmarshal([]byte(raw), &preview); err != nil {
		return nil, err
	}
	if preview == nil {
		preview = map[string]any{}
	}
	return preview, nil
}
