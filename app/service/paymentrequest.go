package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/civicstack/ms-go-payflow/app/entity"
	"github.com/civicstack/ms-go-payflow/app/factory"
	"github.com/civicstack/ms-go-payflow/app/gateway"
	"github.com/civicstack/ms-go-payflow/app/repository"
)

type paymentRequestRepository interface {
	Create(ctx context.Context, request *entity.PaymentRequest) error
	FindByID(ctx context.Context, id string) (*entity.PaymentRequest, error)
	AttachGatewayPayment(ctx context.Context, id, paymentID string, at time.Time) error
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error)
	ListUnpaidWithPayment(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRequest, error)
}

type paymentSessionRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Session, error)
	AppendGatewayPayment(ctx context.Context, id string, payment *gateway.Payment) (bool, error)
}

type CreatePaymentRequestInput struct {
	SessionID     string
	PayeeName     string
	PayeeEmail    string
	ApplicantName string
}

// PaymentRequestLifecycle drives invite-to-pay requests through
// Requested → Created → (Paid | Abandoned).
type PaymentRequestLifecycle struct {
	locks    *SessionLockManager
	requests paymentRequestRepository
	sessions paymentSessionRepository
	logger   logrus.FieldLogger
}

func NewPaymentRequestLifecycle(
	locks *SessionLockManager,
	requests paymentRequestRepository,
	sessions paymentSessionRepository,
) *PaymentRequestLifecycle {
	return &PaymentRequestLifecycle{
		locks:    locks,
		requests: requests,
		sessions: sessions,
		logger:   factory.NewModuleLogger("payment-request-lifecycle"),
	}
}

// Create locks the session, then persists the request. The two writes are
// not one transaction, so a failed persist compensates with an unlock before
// the error surfaces; a failed creation must never leave a stuck lock.
func (l *PaymentRequestLifecycle) Create(ctx context.Context, in *CreatePaymentRequestInput) (*entity.PaymentRequest, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}

	outcome, err := l.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case LockNotFound:
		return nil, ErrSessionNotFound
	case LockAlreadyHeld:
		return nil, ErrSessionLocked
	}

	request, err := l.buildRequest(ctx, sessionID, in)
	if err == nil {
		err = l.requests.Create(ctx, request)
		if errors.Is(err, repository.ErrPaymentRequestAlreadyExists) {
			err = ErrPaymentRequestAlreadyExists
		}
	}
	if err != nil {
		if unlockErr := l.locks.Unlock(ctx, sessionID); unlockErr != nil {
			l.logger.WithError(unlockErr).WithField("session_id", sessionID).Error("Compensating unlock failed, lock needs manual release")
		}
		return nil, err
	}

	return request, nil
}

func (l *PaymentRequestLifecycle) Get(ctx context.Context, id string) (*entity.PaymentRequest, error) {
	request, err := l.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrPaymentRequestNotFound
	}
	return request, nil
}

// AttachPayment records the gateway payment id the nominee's pay attempt
// produced, so a later success observation can be matched to this request.
func (l *PaymentRequestLifecycle) AttachPayment(ctx context.Context, requestID, paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return ErrInvalidRequest
	}
	err := l.requests.AttachGatewayPayment(ctx, requestID, paymentID, time.Now().UTC())
	if errors.Is(err, repository.ErrPaymentRequestNotFound) {
		return ErrPaymentRequestNotFound
	}
	return err
}

// MarkPaid performs two conditional updates: paid_at where currently null
// and for the attached payment id, then the payment append on the owning
// session. Zero affected rows on either one is a race and fails loudly.
func (l *PaymentRequestLifecycle) MarkPaid(ctx context.Context, requestID string, payment *gateway.Payment) error {
	if payment == nil || payment.State.Status != gateway.StatusSuccess {
		return ErrInvalidPaymentStatus
	}

	request, err := l.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrPaymentRequestNotFound
	}

	transitioned, err := l.requests.MarkPaid(ctx, requestID, payment.PaymentID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !transitioned {
		return ErrPaymentRequestConflict
	}

	appended, err := l.sessions.AppendGatewayPayment(ctx, request.SessionID, payment)
	if err != nil {
		return err
	}
	if !appended {
		return ErrSessionNotFound
	}

	return nil
}

func (l *PaymentRequestLifecycle) buildRequest(ctx context.Context, sessionID string, in *CreatePaymentRequestInput) (*entity.PaymentRequest, error) {
	session, err := l.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	now := time.Now().UTC()
	return &entity.PaymentRequest{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		TeamSlug:       session.TeamSlug,
		FlowID:         session.FlowID,
		PayeeName:      strings.TrimSpace(in.PayeeName),
		PayeeEmail:     strings.TrimSpace(in.PayeeEmail),
		ApplicantName:  strings.TrimSpace(in.ApplicantName),
		SessionPreview: redactAnswers(session.Data.Answers),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// redactAnswers copies the session answers minus anything that looks like
// contact or account data; the payee sees what they are paying for, not who
// the applicant is.
func redactAnswers(answers map[string]any) map[string]any {
	preview := make(map[string]any, len(answers))
	for key, value := range answers {
		if isSensitiveKey(key) {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			preview[key] = redactAnswers(nested)
			continue
		}
		preview[key] = value
	}
	return preview
}

func isSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, marker := range []string{"email", "phone", "telephone", "account"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
