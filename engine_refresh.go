package crestauth

import (
	"context"
	"fmt"
	"time"

	"github.com/crestauth/crestauth/jwt"
)

// Refresh exchanges a live refresh token for a fresh pair. Each refresh
// token works exactly once: the presented token is retired before the
// new pair is minted, so replaying it reads as revoked. The old access
// token is left to expire on its own clock.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	claims, err := e.tokens.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		e.metrics.inc(&e.metrics.tokenRejected)
		return nil, ErrInvalidToken
	}

	revoked, err := e.revocations.Contains(ctx, claims.ID)
	if err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		e.metrics.inc(&e.metrics.refreshReuse)
		e.emit(ctx, AuditEvent{
			EventType:   AuditRefreshReuse,
			PrincipalID: claims.Subject,
		})
		return nil, ErrInvalidToken
	}

	watermark, ok, err := e.revocations.Watermark(ctx, claims.Subject)
	if err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ok && claims.IssuedAt.Time.Before(watermark) {
		return nil, ErrInvalidToken
	}

	// Retire before reissue. If minting fails after this point the caller
	// retries with a dead token and must log in again, which beats ever
	// having two live refresh tokens from one grant.
	if err := e.revocations.Add(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, err := e.issuePair(claims.Subject)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(&e.metrics.refreshRotations)
	e.emit(ctx, AuditEvent{
		EventType:   AuditRefreshRotated,
		PrincipalID: claims.Subject,
		Success:     true,
	})

	return pair, nil
}

// Logout revokes the presented tokens for their remaining lifetime.
// Expired tokens are accepted, so a client can always log out; Logout
// fails only when nothing it was handed is even signature-valid.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	var principalID string
	revokedAny := false

	for _, tok := range []struct {
		value string
		kind  jwt.Kind
	}{
		{accessToken, jwt.KindAccess},
		{refreshToken, jwt.KindRefresh},
	} {
		if tok.value == "" {
			continue
		}
		claims, err := e.tokens.DecodeExpired(tok.value, tok.kind)
		if err != nil {
			continue
		}
		principalID = claims.Subject
		revokedAny = true

		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl <= 0 {
			continue
		}
		if err := e.revocations.Add(ctx, claims.ID, ttl); err != nil {
			e.metrics.inc(&e.metrics.storeFailures)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if !revokedAny {
		return ErrInvalidToken
	}

	e.emit(ctx, AuditEvent{
		EventType:   AuditLogout,
		PrincipalID: principalID,
		Success:     true,
	})
	return nil
}
