// Package otc stores one-time-code challenges keyed by challenge ID.
//
// A challenge records which principal it belongs to, the code it expects,
// a logical expiry, and how many wrong guesses have been made. Consume is
// the only way to test a code: it compares in constant time, burns the
// challenge on success, and counts failures toward the attempt budget.
package otc

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("challenge not found")
	ErrExpired     = errors.New("challenge expired")
	ErrMismatch    = errors.New("code mismatch")
	ErrUnavailable = errors.New("challenge backend unavailable")
)

// Record is the stored state of a pending challenge.
type Record struct {
	PrincipalID string
	Code        string
	ExpiresAt   int64
	Attempts    uint16
}

// Store persists challenges. A principal has at most one pending
// challenge: Save drops any earlier challenge of the same principal, so
// reissuing invalidates the previous code.
type Store interface {
	Save(ctx context.Context, challengeID string, record *Record, ttl time.Duration) error

	// Consume tests code against the pending challenge. On match the
	// challenge is deleted and its record returned. On mismatch the
	// attempt counter is bumped and ErrMismatch returned; the mismatch
	// that reaches maxAttempts also deletes the challenge, so later
	// guesses read ErrNotFound.
	Consume(ctx context.Context, challengeID, code string, maxAttempts int) (*Record, error)

	// Delete removes a pending challenge. Reports whether one existed.
	Delete(ctx context.Context, challengeID string) (bool, error)
}
