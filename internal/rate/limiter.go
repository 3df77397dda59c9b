// Package rate enforces fixed-window attempt budgets per action and key.
//
// Allow is a read, Record is a write. The split lets callers check before
// doing work and count only the attempts that matter for the action, such
// as recording every login request but resetting on success.
package rate

import (
	"context"
	"errors"
	"time"
)

// Action names a limited operation. Each action carries its own rule and
// its own counter space, so a login burst cannot starve reset requests.
type Action string

const (
	ActionLogin        Action = "login"
	ActionResetRequest Action = "reset-request"
	ActionOTCVerify    Action = "otc-verify"
	ActionAPIKeyCreate Action = "apikey-create"
)

var (
	ErrLimited     = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("rate limit backend unavailable")
)

// Rule is a fixed-window budget: at most Limit recorded attempts per
// Window. A zero Limit disables the rule.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Rules maps each action to its budget. Actions with no rule are
// unlimited.
type Rules map[Action]Rule

// Limiter tracks attempt counters per (action, key).
type Limiter interface {
	// Allow reports whether another attempt is within budget. When the
	// budget is spent it returns ErrLimited along with the time remaining
	// until the window resets.
	Allow(ctx context.Context, action Action, key string) (time.Duration, error)

	// Record counts one attempt. The first attempt in a window starts the
	// window clock.
	Record(ctx context.Context, action Action, key string) error

	// Reset clears the counter for the (action, key) pair.
	Reset(ctx context.Context, action Action, key string) error
}
