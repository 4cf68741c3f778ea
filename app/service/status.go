package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicstack/ms-go-payflow/app/entity"
	"github.com/civicstack/ms-go-payflow/app/factory"
	"github.com/civicstack/ms-go-payflow/app/gateway"
	"github.com/civicstack/ms-go-payflow/app/notify"
)

type paymentAuditRepository interface {
	Create(ctx context.Context, entry *entity.PaymentAuditEntry) error
}

type sessionPaymentMerger interface {
	MergeGatewayPayment(ctx context.Context, id string, payment *gateway.Payment) error
}

type paidMarker interface {
	MarkPaid(ctx context.Context, requestID string, payment *gateway.Payment) error
}

// RecordContext carries where an observation came from.
type RecordContext struct {
	SessionID        string
	FlowID           string
	Tenant           string
	PaymentRequestID string
}

// PaymentStatusRecorder consumes an intercepted gateway response: audit row
// first, then session merge, then notification. Audit and session writes are
// best-effort but always attempted in that order, so a session never points
// at a payment with no audit trail.
type PaymentStatusRecorder struct {
	audit      paymentAuditRepository
	sessions   sessionPaymentMerger
	notifier   notify.Notifier
	paid       paidMarker
	production bool
	logger     logrus.FieldLogger
}

func NewPaymentStatusRecorder(
	audit paymentAuditRepository,
	sessions sessionPaymentMerger,
	notifier notify.Notifier,
	paid paidMarker,
	production bool,
) *PaymentStatusRecorder {
	return &PaymentStatusRecorder{
		audit:      audit,
		sessions:   sessions,
		notifier:   notifier,
		paid:       paid,
		production: production,
		logger:     factory.NewModuleLogger("payment-status-recorder"),
	}
}

func (r *PaymentStatusRecorder) Record(ctx context.Context, rc RecordContext, payment *gateway.Payment) error {
	entry := &entity.PaymentAuditEntry{
		GovPayPaymentID: payment.PaymentID,
		SessionID:       rc.SessionID,
		FlowID:          rc.FlowID,
		TeamSlug:        rc.Tenant,
		Status:          payment.State.Status,
		AmountPence:     payment.AmountPence,
		Provider:        payment.PaymentProvider,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.PaymentID).Warn("Payment audit write failed")
	}

	if rc.SessionID != "" {
		if err := r.sessions.MergeGatewayPayment(ctx, rc.SessionID, payment); err != nil {
			r.logger.WithError(err).WithField("session_id", rc.SessionID).Warn("Session payment merge failed")
		}
	}

	r.notifyStatus(ctx, rc, payment)

	if rc.PaymentRequestID != "" && payment.State.Status == gateway.StatusSuccess {
		// A zero-row conditional here means a race (already paid, or a
		// mismatched payment id) and must not be swallowed.
		return r.paid.MarkPaid(ctx, rc.PaymentRequestID, payment)
	}

	return nil
}

func (r *PaymentStatusRecorder) notifyStatus(ctx context.Context, rc RecordContext, payment *gateway.Payment) {
	if r.suppressed(payment.PaymentProvider) {
		return
	}

	text := fmt.Sprintf("Payment %s [%s] flow %s, session %s",
		payment.DisplayStatus(), payment.PaymentID, rc.FlowID, rc.SessionID)
	if err := r.notifier.Send(ctx, text); err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.PaymentID).Warn("Status notification failed")
	}
}

// suppressed filters test traffic out of the alert channel: sandbox always,
// stripe only when running in production.
func (r *PaymentStatusRecorder) suppressed(provider string) bool {
	switch provider {
	case gateway.ProviderSandbox:
		return true
	case gateway.ProviderStripe:
		return r.production
	}
	return false
}
