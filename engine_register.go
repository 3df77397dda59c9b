package crestauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisterRequest carries everything needed to create a principal.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	// Phone is optional unless MFAMethod is MFASMS, which delivers codes
	// there.
	Phone string
	// MFAMethod opts the account into a second factor at login.
	MFAMethod MFAMethod
}

// Register creates a new active principal. Username and email must both
// be unused; the conflict surfaces as ErrDuplicate without saying which
// field collided.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*PrincipalSummary, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := e.validatePassword(req.Password); err != nil {
		return nil, err
	}
	if phone != "" {
		if err := validatePhone(phone); err != nil {
			return nil, err
		}
	}
	switch req.MFAMethod {
	case MFADisabled, MFAEmail:
	case MFASMS:
		if phone == "" {
			return nil, fmt.Errorf("%w: sms mfa requires a phone number", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported mfa method", ErrValidation)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	principal := &Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Status:       StatusActive,
		MFAMethod:    req.MFAMethod,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.CreateUser(sctx, principal); err != nil {
		return nil, err
	}

	e.metrics.inc(&e.metrics.registrations)
	e.emit(ctx, AuditEvent{
		EventType:   AuditRegister,
		PrincipalID: principal.ID,
		Success:     true,
	})

	summary := principal.Summary()
	return &summary, nil
}
