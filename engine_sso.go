package crestauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoginWithProvider logs in a provider-verified external identity. The
// provider handshake happens outside the engine; the caller vouches that
// identity was authenticated.
//
// A known (provider, subject) pair logs into its linked principal. An
// unknown pair links to the principal owning the identity's email, or
// provisions a fresh principal when no such account exists. The second
// factor is skipped: the provider already was one.
func (e *Engine) LoginWithProvider(ctx context.Context, identity ExternalIdentity) (*LoginResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	identity.Provider = strings.TrimSpace(identity.Provider)
	identity.SubjectID = strings.TrimSpace(identity.SubjectID)
	identity.Email = normalizeEmail(identity.Email)
	if identity.Provider == "" || identity.SubjectID == "" {
		return nil, fmt.Errorf("%w: provider and subject required", ErrValidation)
	}

	sctx, cancel := e.storeCtx(ctx)
	linkage, err := e.store.FindSSOLinkage(sctx, identity.Provider, identity.SubjectID)
	cancel()

	var principal *Principal
	switch {
	case err == nil:
		sctx, cancel := e.storeCtx(ctx)
		principal, err = e.store.GetUser(sctx, linkage.UserID)
		cancel()
		if err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		principal, err = e.linkOrProvision(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if principal.Status == StatusDisabled {
		return nil, ErrAccountDisabled
	}

	pair, err := e.issuePair(principal.ID)
	if err != nil {
		return nil, err
	}

	e.noteLoginSuccess(ctx, principal)
	e.metrics.inc(&e.metrics.ssoLogins)
	e.metrics.inc(&e.metrics.loginSuccess)
	e.emit(ctx, AuditEvent{
		EventType:   AuditSSOLogin,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"provider": identity.Provider},
	})

	return &LoginResult{
		Tokens:    pair,
		Principal: principal.Summary(),
	}, nil
}

// linkOrProvision attaches the external identity to the account owning
// its email, creating the account first when none exists.
func (e *Engine) linkOrProvision(ctx context.Context, identity ExternalIdentity) (*Principal, error) {
	if err := validateEmail(identity.Email); err != nil {
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.FindUserByEmail(sctx, identity.Email)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		principal, err = e.provisionPrincipal(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	linkage := &SSOLinkage{
		ID:        uuid.NewString(),
		UserID:    principal.ID,
		Provider:  identity.Provider,
		SubjectID: identity.SubjectID,
		CreatedAt: time.Now(),
	}
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.CreateSSOLinkage(sctx, linkage)
	cancel()
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	return principal, nil
}

// provisionPrincipal creates an account for a first-time external
// identity. The password slot gets a hash of random bytes nobody knows,
// so the account is reachable through its provider or a password reset,
// never by guessing.
func (e *Engine) provisionPrincipal(ctx context.Context, identity ExternalIdentity) (*Principal, error) {
	username := strings.TrimSpace(identity.Username)
	if validateUsername(username) != nil {
		username = identity.Provider + "-" + uuid.NewString()[:8]
	}

	secret, err := generateResetToken()
	if err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	principal := &Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        identity.Email,
		PasswordHash: hash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sctx, cancel := e.storeCtx(ctx)
	err = e.store.CreateUser(sctx, principal)
	cancel()
	if errors.Is(err, ErrDuplicate) {
		// Username collision with an unrelated account; retry once with a
		// random suffix.
		principal.Username = username + "-" + uuid.NewString()[:8]
		sctx, cancel := e.storeCtx(ctx)
		err = e.store.CreateUser(sctx, principal)
		cancel()
	}
	if err != nil {
		return nil, err
	}

	e.emit(ctx, AuditEvent{
		EventType:   AuditSSOProvisioned,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"provider": identity.Provider},
	})
	return principal, nil
}
