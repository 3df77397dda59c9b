package crestauth

import (
	"context"
	"time"
)

// EntityStore is the persistence boundary. The engine owns identity
// semantics; the store owns durability. Implementations must be safe for
// concurrent use.
//
// Error contract: Create returns ErrDuplicate on a uniqueness conflict,
// Get/Find return ErrNotFound for a missing entity, and every backend
// failure surfaces as ErrStoreUnavailable. A store must never report
// ErrNotFound for an entity it merely failed to reach.
type EntityStore interface {
	CreateUser(ctx context.Context, user *Principal) error
	GetUser(ctx context.Context, id string) (*Principal, error)
	FindUserByUsername(ctx context.Context, username string) (*Principal, error)
	FindUserByEmail(ctx context.Context, email string) (*Principal, error)
	UpdateUser(ctx context.Context, id string, patch PrincipalPatch) error

	CreateAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKey(ctx context.Context, id string) (*APIKey, error)
	FindAPIKeyByDigest(ctx context.Context, digest string) (*APIKey, error)
	ListAPIKeysByUser(ctx context.Context, userID string) ([]*APIKey, error)
	UpdateAPIKey(ctx context.Context, id string, patch APIKeyPatch) error

	CreateResetToken(ctx context.Context, token *ResetToken) error
	FindResetTokenByDigest(ctx context.Context, digest string) (*ResetToken, error)
	UpdateResetToken(ctx context.Context, id string, patch ResetTokenPatch) error
	// InvalidateResetTokensForUser marks every unused reset token of the
	// principal as used. Reports no error when there are none.
	InvalidateResetTokensForUser(ctx context.Context, userID string) error

	CreateSSOLinkage(ctx context.Context, linkage *SSOLinkage) error
	FindSSOLinkage(ctx context.Context, provider, subjectID string) (*SSOLinkage, error)
}

// PrincipalPatch is a partial update. Nil fields are left untouched.
// ClearLockedUntil distinguishes "unset the lock" from "leave it alone".
type PrincipalPatch struct {
	PasswordHash     *string
	Status           *AccountStatus
	MFAMethod        *MFAMethod
	FailedLogins     *int
	LockedUntil      *time.Time
	ClearLockedUntil bool
	LastLoginAt      *time.Time
	UpdatedAt        *time.Time
}

type APIKeyPatch struct {
	Active     *bool
	LastUsedAt *time.Time
}

type ResetTokenPatch struct {
	Used *bool
}
