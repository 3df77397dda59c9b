package crestauth

import (
	"context"
	"time"
)

// Notifier delivers security notifications out of band. The engine never
// blocks a flow on delivery: failures are logged and the operation
// proceeds, except where a flow is meaningless without delivery.
type Notifier interface {
	// SendOTC delivers a one-time code. The destination is the account
	// email, or the account phone for SMS-method principals.
	SendOTC(ctx context.Context, destination, code string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
	SendAccountLocked(ctx context.Context, email string, until time.Time) error
}

// NoOpNotifier discards every notification. Useful in tests and for hosts
// that handle delivery elsewhere.
type NoOpNotifier struct{}

func (NoOpNotifier) SendOTC(context.Context, string, string, time.Time) error {
	return nil
}

func (NoOpNotifier) SendPasswordReset(context.Context, string, string, time.Time) error {
	return nil
}

func (NoOpNotifier) SendAccountLocked(context.Context, string, time.Time) error {
	return nil
}
