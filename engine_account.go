package crestauth

import (
	"context"
	"fmt"
)

// ChangePassword replaces a principal's password after verifying the
// current one. Every existing session is cut off via the watermark; the
// caller is expected to log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if userID == "" || currentPassword == "" {
		return ErrValidation
	}
	if err := e.validatePassword(newPassword); err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, userID)
	cancel()
	if err != nil {
		return err
	}
	if principal.Status == StatusDisabled {
		return ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(currentPassword, principal.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrPasswordReuse
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
		ClearLockedUntil: principal.LockedUntil != nil,
	})
	cancel()
	if err != nil {
		return err
	}

	e.bumpWatermark(ctx, principal.ID)

	e.emit(ctx, AuditEvent{
		EventType:   AuditPasswordChanged,
		PrincipalID: principal.ID,
		Success:     true,
	})
	return nil
}

// SetAccountStatus is the administrative enable/disable switch.
// Disabling also cuts off every live session via the watermark;
// re-enabling restores nothing, the principal logs in afresh.
func (e *Engine) SetAccountStatus(ctx context.Context, userID string, status AccountStatus) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if userID == "" {
		return ErrValidation
	}
	switch status {
	case StatusActive, StatusDisabled:
	default:
		return fmt.Errorf("%w: unknown account status %q", ErrValidation, status)
	}

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, userID)
	cancel()
	if err != nil {
		return err
	}
	if principal.Status == status {
		return nil
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.UpdateUser(sctx, principal.ID, PrincipalPatch{Status: &status})
	cancel()
	if err != nil {
		return err
	}

	if status == StatusDisabled {
		e.bumpWatermark(ctx, principal.ID)
	}

	e.emit(ctx, AuditEvent{
		EventType:   AuditAccountStatusSet,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"status": string(status)},
	})
	return nil
}
