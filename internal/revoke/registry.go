// Package revoke tracks revoked token IDs and per-principal session
// watermarks.
//
// A revoked jti stays listed until its token would have expired anyway, so
// the registry never grows beyond the set of live tokens. The watermark is
// a coarser control: tokens issued before a principal's watermark are
// rejected wholesale, which is how a password reset ends every session at
// once.
package revoke

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports a registry backend failure. Callers treat it as
// fail-closed for token verification.
var ErrUnavailable = errors.New("revocation backend unavailable")

type Registry interface {
	// Add lists jti as revoked for ttl. Adding an already-listed jti
	// refreshes its ttl and is not an error.
	Add(ctx context.Context, jti string, ttl time.Duration) error

	// Contains reports whether jti is currently listed.
	Contains(ctx context.Context, jti string) (bool, error)

	// SetWatermark records that tokens issued to principalID before t are
	// rejected. The entry may be dropped after ttl, which should cover the
	// longest-lived token.
	SetWatermark(ctx context.Context, principalID string, t time.Time, ttl time.Duration) error

	// Watermark returns the principal's watermark, if one is set.
	Watermark(ctx context.Context, principalID string) (time.Time, bool, error)
}
