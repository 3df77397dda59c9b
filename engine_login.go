package crestauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/crestauth/crestauth/internal/rate"
)

// Login verifies the first factor for a principal addressed by username
// or email. On success it returns either a token pair or, for accounts
// with a second factor, an MFA challenge to complete with VerifyOTC.
//
// Unknown identifiers and wrong passwords both come back as
// ErrInvalidCredentials. A lockout in force comes back as a LockoutError
// regardless of whether the submitted password was correct.
func (e *Engine) Login(ctx context.Context, identifier, pw string) (*LoginResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || pw == "" {
		return nil, ErrValidation
	}

	ip := clientIPFromContext(ctx)
	if err := e.allow(ctx, rate.ActionLogin, ip); err != nil {
		return nil, err
	}
	e.recordAttempt(ctx, rate.ActionLogin, ip)

	principal, err := e.findPrincipal(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metrics.inc(&e.metrics.loginFailure)
			e.emit(ctx, AuditEvent{
				EventType: AuditLoginFailure,
				Error:     "unknown identifier",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if principal.Status == StatusDisabled {
		e.emit(ctx, AuditEvent{
			EventType:   AuditLoginFailure,
			PrincipalID: principal.ID,
			Error:       "account disabled",
		})
		return nil, ErrAccountDisabled
	}

	now := time.Now()
	if principal.LockedUntil != nil && now.Before(*principal.LockedUntil) {
		e.emit(ctx, AuditEvent{
			EventType:   AuditLoginLocked,
			PrincipalID: principal.ID,
		})
		return nil, &LockoutError{Until: *principal.LockedUntil}
	}

	ok, err := e.hasher.Verify(pw, principal.PasswordHash)
	if err != nil {
		// A hash we cannot parse is a data problem, not the caller's.
		// Reject the login and leave a trail.
		e.logger.ErrorContext(ctx, "stored password hash unreadable",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, e.registerLoginFailure(ctx, principal, now)
	}

	e.maybeUpgradeHash(ctx, principal, pw)
	e.resetAttempts(ctx, rate.ActionLogin, ip)

	summary := principal.Summary()

	if principal.MFAMethod != MFADisabled {
		// The login is not complete yet; last-login is stamped when the
		// challenge is verified.
		e.clearLoginFailures(ctx, principal)
		challenge, err := e.issueChallenge(ctx, principal)
		if err != nil {
			return nil, err
		}
		return &LoginResult{
			MFARequired: true,
			Challenge:   challenge,
			Principal:   summary,
		}, nil
	}

	pair, err := e.issuePair(principal.ID)
	if err != nil {
		return nil, err
	}

	e.noteLoginSuccess(ctx, principal)

	e.metrics.inc(&e.metrics.loginSuccess)
	e.emit(ctx, AuditEvent{
		EventType:   AuditLoginSuccess,
		PrincipalID: principal.ID,
		Success:     true,
	})

	return &LoginResult{
		Tokens:    pair,
		Principal: summary,
	}, nil
}

// findPrincipal resolves a login identifier, trying username first and
// email second.
func (e *Engine) findPrincipal(ctx context.Context, identifier string) (*Principal, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	principal, err := e.store.FindUserByUsername(sctx, identifier)
	if err == nil {
		return principal, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return e.store.FindUserByEmail(sctx, normalizeEmail(identifier))
}

// registerLoginFailure counts one wrong password. Crossing the failure
// budget trips a lockout, resets the counter for the next window, and
// tells the account owner.
func (e *Engine) registerLoginFailure(ctx context.Context, principal *Principal, now time.Time) error {
	failures := principal.FailedLogins + 1

	if failures >= e.config.Lockout.MaxFailures {
		until := now.Add(e.config.Lockout.Duration)
		zero := 0
		patch := PrincipalPatch{
			FailedLogins: &zero,
			LockedUntil:  &until,
		}
		e.updateBestEffort(ctx, principal.ID, patch)

		e.metrics.inc(&e.metrics.lockouts)
		e.emit(ctx, AuditEvent{
			EventType:   AuditLoginLocked,
			PrincipalID: principal.ID,
			Error:       "failure budget exceeded",
		})
		e.notify(ctx, principal.ID, func(nctx context.Context) error {
			return e.notifier.SendAccountLocked(nctx, principal.Email, until)
		})
		return &LockoutError{Until: until}
	}

	patch := PrincipalPatch{
		FailedLogins:     &failures,
		ClearLockedUntil: principal.LockedUntil != nil,
	}
	e.updateBestEffort(ctx, principal.ID, patch)

	e.metrics.inc(&e.metrics.loginFailure)
	e.emit(ctx, AuditEvent{
		EventType:   AuditLoginFailure,
		PrincipalID: principal.ID,
		Error:       "wrong password",
	})
	return ErrInvalidCredentials
}

// clearLoginFailures resets the failure counter and any elapsed lock
// after a successful verify.
func (e *Engine) clearLoginFailures(ctx context.Context, principal *Principal) {
	if principal.FailedLogins == 0 && principal.LockedUntil == nil {
		return
	}
	zero := 0
	e.updateBestEffort(ctx, principal.ID, PrincipalPatch{
		FailedLogins:     &zero,
		ClearLockedUntil: principal.LockedUntil != nil,
	})
}

// noteLoginSuccess stamps last-login and clears any failure state once a
// login fully completes.
func (e *Engine) noteLoginSuccess(ctx context.Context, principal *Principal) {
	now := time.Now()
	patch := PrincipalPatch{LastLoginAt: &now}
	if principal.FailedLogins != 0 || principal.LockedUntil != nil {
		zero := 0
		patch.FailedLogins = &zero
		patch.ClearLockedUntil = principal.LockedUntil != nil
	}
	e.updateBestEffort(ctx, principal.ID, patch)
}

// maybeUpgradeHash rehashes the password at the configured cost when the
// stored hash is stale. Login never fails over this.
func (e *Engine) maybeUpgradeHash(ctx context.Context, principal *Principal, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(principal.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return
	}
	e.updateBestEffort(ctx, principal.ID, PrincipalPatch{PasswordHash: &hash})
}

// updateBestEffort applies a patch that must not fail the caller's flow.
func (e *Engine) updateBestEffort(ctx context.Context, principalID string, patch PrincipalPatch) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.store.UpdateUser(sctx, principalID, patch); err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		e.logger.WarnContext(ctx, "principal update failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err),
		)
	}
}
