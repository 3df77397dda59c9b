package crestauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation reports a malformed or incomplete request.
	ErrValidation = errors.New("invalid request")
	// ErrWeakPassword reports a password that fails the policy.
	ErrWeakPassword = errors.New("password policy violation")
	// ErrPasswordReuse reports a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrDuplicate reports a uniqueness conflict on create.
	ErrDuplicate = errors.New("entity already exists")
	// ErrNotFound reports a missing entity.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password, so login failures reveal nothing about account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked reports a lockout in force. Failures carrying the
	// lockout deadline wrap this sentinel as a LockoutError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled reports an administratively disabled account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidCode reports a wrong one-time code with budget remaining.
	ErrInvalidCode = errors.New("invalid one-time code")
	// ErrCodeExpired reports a one-time code past its deadline.
	ErrCodeExpired = errors.New("one-time code expired")
	// ErrCodeNotFound reports an unknown or already-consumed challenge.
	ErrCodeNotFound = errors.New("one-time code challenge not found")
	// ErrForbidden reports an operation on an entity the caller does not
	// own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken covers every token rejection: bad signature, wrong
	// kind, expired, revoked, or issued before the session watermark.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidAPIKey covers unknown, revoked, and owner-disabled keys.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrInvalidResetToken covers unknown, used, and expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrRateLimited reports a spent attempt budget. Failures carrying a
	// retry hint wrap this sentinel as a RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable reports an entity store or keyed store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDispatchFailure reports a notification delivery failure on a path
	// where delivery is required.
	ErrDispatchFailure = errors.New("notification dispatch failed")
	// ErrEngineClosed reports use after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// LockoutError carries the lockout deadline. errors.Is matches it against
// ErrAccountLocked.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RateLimitError carries the time remaining in the current window.
// errors.Is matches it against ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ErrorCode maps an engine error to a stable machine-readable code, for
// hosts that translate errors onto a wire protocol.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, ErrPasswordReuse):
		return "password_reuse"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, ErrCodeNotFound):
		return "code_not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidAPIKey):
		return "invalid_api_key"
	case errors.Is(err, ErrInvalidResetToken):
		return "invalid_reset_token"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrDispatchFailure):
		return "dispatch_failure"
	case errors.Is(err, ErrEngineClosed):
		return "engine_closed"
	default:
		return "internal"
	}
}
