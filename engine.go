package crestauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crestauth/crestauth/internal/otc"
	"github.com/crestauth/crestauth/internal/rate"
	"github.com/crestauth/crestauth/internal/revoke"
	"github.com/crestauth/crestauth/jwt"
	"github.com/crestauth/crestauth/password"
)

// Engine is the identity and credential core. It owns registration,
// login with lockout, MFA one-time codes, token issuance and rotation,
// API keys, and password reset; persistence and delivery stay behind the
// EntityStore and Notifier boundaries. Safe for concurrent use.
type Engine struct {
	config   Config
	store    EntityStore
	notifier Notifier
	logger   *slog.Logger

	hasher      *password.Hasher
	tokens      *jwt.Manager
	challenges  otc.Store
	revocations revoke.Registry
	limiter     rate.Limiter

	audit   *auditDispatcher
	metrics *Metrics

	closed atomic.Bool
}

// Close drains the audit dispatcher. The engine rejects further calls.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.audit.Close()
}

// Metrics returns a point-in-time counter snapshot.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// VerifyAccessToken checks an access token's signature and claims, then
// the revocation registry and the holder's session watermark. Registry
// failures reject the token rather than letting a possibly revoked token
// through.
func (e *Engine) VerifyAccessToken(ctx context.Context, token string) (*TokenInfo, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	claims, err := e.tokens.Verify(token, jwt.KindAccess)
	if err != nil {
		e.metrics.inc(&e.metrics.tokenRejected)
		return nil, ErrInvalidToken
	}

	if err := e.checkNotRevoked(ctx, claims); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			e.metrics.inc(&e.metrics.tokenRejected)
		}
		return nil, err
	}

	e.metrics.inc(&e.metrics.tokenVerified)
	return &TokenInfo{
		PrincipalID: claims.Subject,
		TokenID:     claims.ID,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// checkNotRevoked enforces the revocation registry and the per-principal
// session watermark. Fail-closed: a registry error rejects the token.
func (e *Engine) checkNotRevoked(ctx context.Context, claims *jwt.Claims) error {
	revoked, err := e.revocations.Contains(ctx, claims.ID)
	if err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return ErrInvalidToken
	}

	watermark, ok, err := e.revocations.Watermark(ctx, claims.Subject)
	if err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ok && claims.IssuedAt.Time.Before(watermark) {
		return ErrInvalidToken
	}
	return nil
}

// issuePair mints a fresh access/refresh pair for a principal.
func (e *Engine) issuePair(principalID string) (*TokenPair, error) {
	access, accessClaims, err := e.tokens.Issue(principalID, jwt.KindAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := e.tokens.Issue(principalID, jwt.KindRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// storeCtx bounds an entity store call.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.StoreTimeout)
}

// notify runs one delivery attempt under the dispatch timeout. Failures
// are logged and audited, never returned: flows proceed without delivery.
func (e *Engine) notify(ctx context.Context, principalID string, send func(context.Context) error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.DispatchTimeout)
	defer cancel()

	if err := send(nctx); err != nil {
		e.metrics.inc(&e.metrics.notifyFailures)
		e.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err),
		)
		e.emit(ctx, AuditEvent{
			EventType:   AuditNotificationError,
			PrincipalID: principalID,
			Error:       err.Error(),
		})
	}
}

// emit stamps the event with request context and hands it to the
// dispatcher.
func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.CorrelationID == "" {
		event.CorrelationID = CorrelationIDFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// allow consults the attempt budget for (action, key). A spent budget
// returns a RateLimitError carrying the retry hint; limiter backend
// failures are logged and the request is let through, since throttling
// is protection rather than correctness.
func (e *Engine) allow(ctx context.Context, action rate.Action, key string) error {
	if key == "" {
		return nil
	}
	retryAfter, err := e.limiter.Allow(ctx, action, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrLimited) {
		e.metrics.inc(&e.metrics.rateLimited)
		return &RateLimitError{RetryAfter: retryAfter}
	}
	e.logger.WarnContext(ctx, "rate limiter unavailable",
		slog.String("action", string(action)),
		slog.Any("error", err),
	)
	return nil
}

// recordAttempt counts one attempt against (action, key). Best effort.
func (e *Engine) recordAttempt(ctx context.Context, action rate.Action, key string) {
	if key == "" {
		return
	}
	if err := e.limiter.Record(ctx, action, key); err != nil {
		e.logger.WarnContext(ctx, "rate limiter record failed",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}

// resetAttempts clears the budget for (action, key). Best effort.
func (e *Engine) resetAttempts(ctx context.Context, action rate.Action, key string) {
	if key == "" {
		return
	}
	if err := e.limiter.Reset(ctx, action, key); err != nil {
		e.logger.WarnContext(ctx, "rate limiter reset failed",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}
