package service

import (
	"context"
	"time"

	"github.com/civicstack/ms-go-payflow/app/entity"
)

type LockOutcome int

const (
	LockNotFound LockOutcome = iota
	LockAlreadyHeld
	LockAcquired
)

type sessionLockRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Session, error)
	Lock(ctx context.Context, id string, at time.Time) (bool, error)
	Unlock(ctx context.Context, id string) error
}

// SessionLockManager enforces the one-shot lock per session. The lock lives
// in the session row and is taken with a conditional write, so concurrent
// callers across processes serialize on the database, not on a mutex.
type SessionLockManager struct {
	sessions sessionLockRepository
}

func NewSessionLockManager(sessions sessionLockRepository) *SessionLockManager {
	return &SessionLockManager{sessions: sessions}
}

func (m *SessionLockManager) Lock(ctx context.Context, sessionID string) (LockOutcome, error) {
	acquired, err := m.sessions.Lock(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return LockNotFound, err
	}
	if acquired {
		return LockAcquired, nil
	}

	// Zero rows: either the session does not exist or someone holds the
	// lock. One read distinguishes the two for the caller's error message.
	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return LockNotFound, err
	}
	if session == nil {
		return LockNotFound, nil
	}
	return LockAlreadyHeld, nil
}

func (m *SessionLockManager) Unlock(ctx context.Context, sessionID string) error {
	return m.sessions.Unlock(ctx, sessionID)
}
