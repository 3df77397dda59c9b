package crestauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crestauth/crestauth/internal/rate"
)

const apiKeyPrefix = "ak_"

const (
	minAPIKeyNameLength = 1
	maxAPIKeyNameLength = 100
)

// CreateAPIKey mints a key for an active principal. The plaintext is
// returned exactly once; only its SHA-256 digest is stored, so a leaked
// store cannot reconstruct keys. A nil expiresAt makes the key
// long-lived; otherwise it must lie in the future.
func (e *Engine) CreateAPIKey(ctx context.Context, userID, name string, expiresAt *time.Time) (*CreatedAPIKey, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	name = strings.TrimSpace(name)
	if userID == "" || len(name) < minAPIKeyNameLength || len(name) > maxAPIKeyNameLength {
		return nil, ErrValidation
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrValidation)
	}

	if err := e.allow(ctx, rate.ActionAPIKeyCreate, userID); err != nil {
		return nil, err
	}
	e.recordAttempt(ctx, rate.ActionAPIKeyCreate, userID)

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, userID)
	cancel()
	if err != nil {
		return nil, err
	}
	if principal.Status == StatusDisabled {
		return nil, ErrAccountDisabled
	}

	plaintext, err := generateAPIKey(e.config.APIKey.EntropyBytes)
	if err != nil {
		return nil, err
	}

	key := &APIKey{
		ID:        uuid.NewString(),
		UserID:    principal.ID,
		Name:      name,
		Digest:    apiKeyDigest(plaintext),
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.CreateAPIKey(sctx, key)
	cancel()
	if err != nil {
		return nil, err
	}

	e.metrics.inc(&e.metrics.apiKeysCreated)
	e.emit(ctx, AuditEvent{
		EventType:   AuditAPIKeyCreated,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"key_id": key.ID},
	})

	return &CreatedAPIKey{
		APIKeySummary: key.Summary(),
		Plaintext:     plaintext,
	}, nil
}

// ValidateAPIKey resolves a plaintext key to its owning principal.
// Unknown, revoked, expired, and owner-disabled keys all read as
// ErrInvalidAPIKey. The key's last-used timestamp is advanced best
// effort, off the hot path.
func (e *Engine) ValidateAPIKey(ctx context.Context, plaintext string) (*PrincipalSummary, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if plaintext == "" {
		return nil, ErrInvalidAPIKey
	}

	sctx, cancel := e.storeCtx(ctx)
	key, err := e.store.FindAPIKeyByDigest(sctx, apiKeyDigest(plaintext))
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if !key.Active {
		return nil, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidAPIKey
	}

	sctx, cancel = e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, key.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if principal.Status == StatusDisabled {
		return nil, ErrInvalidAPIKey
	}

	e.touchAPIKey(ctx, key.ID)

	summary := principal.Summary()
	return &summary, nil
}

// ListAPIKeys returns the principal's keys, revoked ones included.
// Digests never leave the store boundary.
func (e *Engine) ListAPIKeys(ctx context.Context, userID string) ([]APIKeySummary, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if userID == "" {
		return nil, ErrValidation
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	keys, err := e.store.ListAPIKeysByUser(sctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]APIKeySummary, 0, len(keys))
	for _, key := range keys {
		summaries = append(summaries, key.Summary())
	}
	return summaries, nil
}

// RevokeAPIKey deactivates one of the principal's keys. Revocation is
// permanent; there is no operation that reactivates a key. Revoking an
// already-revoked key is a no-op. A key owned by someone else reads as
// ErrForbidden.
func (e *Engine) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if userID == "" || keyID == "" {
		return ErrValidation
	}

	sctx, cancel := e.storeCtx(ctx)
	key, err := e.store.GetAPIKey(sctx, keyID)
	cancel()
	if err != nil {
		return err
	}
	if key.UserID != userID {
		return ErrForbidden
	}
	if !key.Active {
		return nil
	}

	inactive := false
	sctx, cancel = e.storeCtx(ctx)
	err = e.store.UpdateAPIKey(sctx, key.ID, APIKeyPatch{Active: &inactive})
	cancel()
	if err != nil {
		return err
	}

	e.metrics.inc(&e.metrics.apiKeysRevoked)
	e.emit(ctx, AuditEvent{
		EventType:   AuditAPIKeyRevoked,
		PrincipalID: userID,
		Success:     true,
		Metadata:    map[string]string{"key_id": keyID},
	})
	return nil
}

// touchAPIKey advances last-used without holding up validation.
func (e *Engine) touchAPIKey(ctx context.Context, keyID string) {
	now := time.Now()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.StoreTimeout)

	go func() {
		defer cancel()
		if err := e.store.UpdateAPIKey(sctx, keyID, APIKeyPatch{LastUsedAt: &now}); err != nil {
			e.logger.WarnContext(sctx, "api key last-used update failed",
				slog.String("key_id", keyID),
				slog.Any("error", err),
			)
		}
	}()
}

func generateAPIKey(entropyBytes int) (string, error) {
	raw := make([]byte, entropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("api key entropy: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func apiKeyDigest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
