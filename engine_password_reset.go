package crestauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crestauth/crestauth/internal/rate"
)

const resetTokenBytes = 32

// enumerationDelay pads the unknown-address path of RequestPasswordReset
// so its response time resembles the real path.
const enumerationDelay = 100 * time.Millisecond

// RequestPasswordReset starts a reset for the account behind email. The
// outcome is deliberately identical whether or not such an account
// exists; the only caller-visible failures are rate limiting and backend
// unavailability.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := e.allow(ctx, rate.ActionResetRequest, email); err != nil {
		return err
	}
	e.recordAttempt(ctx, rate.ActionResetRequest, email)

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.FindUserByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			time.Sleep(enumerationDelay)
			e.emit(ctx, AuditEvent{
				EventType: AuditResetRequested,
				Error:     "unknown email",
			})
			return nil
		}
		return err
	}

	plaintext, err := generateResetToken()
	if err != nil {
		return err
	}

	// A principal holds at most one live reset token: issuing a new one
	// retires whatever was outstanding.
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.InvalidateResetTokensForUser(sctx, principal.ID)
	cancel()
	if err != nil {
		return err
	}

	token := &ResetToken{
		ID:        uuid.NewString(),
		UserID:    principal.ID,
		Digest:    apiKeyDigest(plaintext),
		ExpiresAt: time.Now().Add(e.config.Reset.TokenTTL),
		CreatedAt: time.Now(),
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.CreateResetToken(sctx, token)
	cancel()
	if err != nil {
		return err
	}

	e.notify(ctx, principal.ID, func(nctx context.Context) error {
		return e.notifier.SendPasswordReset(nctx, principal.Email, plaintext, token.ExpiresAt)
	})

	e.metrics.inc(&e.metrics.resetRequests)
	e.emit(ctx, AuditEvent{
		EventType:   AuditResetRequested,
		PrincipalID: principal.ID,
		Success:     true,
	})
	return nil
}

// ConfirmPasswordReset redeems a reset token and installs a new password.
// Unknown, used, and expired tokens all read as ErrInvalidResetToken.
// The token is burned before the password changes, so it can never be
// redeemed twice; every session of the principal is then cut off via the
// watermark.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := e.validatePassword(newPassword); err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	stored, err := e.store.FindResetTokenByDigest(sctx, apiKeyDigest(token))
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if stored.Used || time.Now().After(stored.ExpiresAt) {
		return ErrInvalidResetToken
	}

	sctx, cancel = e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, stored.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	same, err := e.hasher.Verify(newPassword, principal.PasswordHash)
	if err == nil && same {
		return ErrPasswordReuse
	}

	used := true
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.UpdateResetToken(sctx, stored.ID, ResetTokenPatch{Used: &used})
	cancel()
	if err != nil {
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	zero := 0
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.UpdateUser(sctx, principal.ID, PrincipalPatch{
		PasswordHash:     &hash,
		FailedLogins:     &zero,
		ClearLockedUntil: true,
	})
	cancel()
	if err != nil {
		return err
	}

	e.bumpWatermark(ctx, principal.ID)

	e.metrics.inc(&e.metrics.resetConfirms)
	e.emit(ctx, AuditEvent{
		EventType:   AuditResetConfirmed,
		PrincipalID: principal.ID,
		Success:     true,
	})
	return nil
}

// bumpWatermark invalidates every token issued to the principal so far.
// A registry failure here is logged rather than returned: verification
// fails closed when the registry is down, so stale sessions cannot slip
// through in the meantime.
func (e *Engine) bumpWatermark(ctx context.Context, principalID string) {
	err := e.revocations.SetWatermark(ctx, principalID, time.Now(), e.config.JWT.RefreshTTL)
	if err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		e.logger.WarnContext(ctx, "session watermark update failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err),
		)
	}
}

func generateResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reset token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
