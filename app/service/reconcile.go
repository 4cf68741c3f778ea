package service

import (
	"context"
	"strings"
	"time"

	"github.com/civicstack/ms-go-payflow/app/gateway"
)

type gatewayReader interface {
	GetPayment(ctx context.Context, tenant, paymentID string) (*gateway.Payment, error)
}

// PaymentReconciler converges invite-to-pay requests whose gateway payment
// never came back through the proxy (abandoned tabs, missed polls). It polls
// the gateway and replays the result through the recorder, which reuses the
// exact audit/merge/mark-paid path a live observation takes.
type PaymentReconciler struct {
	requests   paymentRequestRepository
	gateway    gatewayReader
	recorder   *PaymentStatusRecorder
	staleAfter time.Duration
	batchSize  int32
}

func NewPaymentReconciler(
	requests paymentRequestRepository,
	reader gatewayReader,
	recorder *PaymentStatusRecorder,
	staleAfter time.Duration,
	batchSize int32,
) *PaymentReconciler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PaymentReconciler{
		requests:   requests,
		gateway:    reader,
		recorder:   recorder,
		staleAfter: staleAfter,
		batchSize:  batchSize,
	}
}

func (r *PaymentReconciler) RunBatch(ctx context.Context) error {
	before := time.Now().UTC().Add(-r.staleAfter)
	items, err := r.requests.ListUnpaidWithPayment(ctx, before, r.batchSize)
	if err != nil {
		return err
	}

	var firstErr error
	for _, request := range items {
		if request == nil || request.GovPayPaymentID == nil || strings.TrimSpace(*request.GovPayPaymentID) == "" {
			continue
		}

		payment, err := r.gateway.GetPayment(ctx, request.TeamSlug, *request.GovPayPaymentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		err = r.recorder.Record(ctx, RecordContext{
			SessionID:        request.SessionID,
			FlowID:           request.FlowID,
			Tenant:           request.TeamSlug,
			PaymentRequestID: request.ID,
		}, payment)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
