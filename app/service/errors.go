package service

import "errors"

var (
	ErrInvalidRequest              = errors.New("invalid request")
	ErrSessionNotFound             = errors.New("session not found")
	ErrSessionLocked               = errors.New("session is locked, payment request likely already in progress")
	ErrPaymentRequestNotFound      = errors.New("payment request not found")
	ErrPaymentRequestAlreadyExists = errors.New("payment request already exists")
	// ErrPaymentRequestConflict covers both "already paid" and "payment id
	// mismatch"; the conditional update cannot tell them apart.
	ErrPaymentRequestConflict = errors.New("payment request already paid or payment id mismatch")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrUnknownDestination     = errors.New("unknown submission destination")
)
