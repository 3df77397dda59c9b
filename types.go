package crestauth

import "time"

// AccountStatus is the lifecycle state of a principal.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusDisabled AccountStatus = "disabled"
)

// MFAMethod selects the second factor required at login.
type MFAMethod string

const (
	MFADisabled MFAMethod = ""
	MFAEmail    MFAMethod = "email"
	MFASMS      MFAMethod = "sms"
)

// Principal is the full stored identity, including credential material.
// It never crosses the engine boundary; callers get a PrincipalSummary.
type Principal struct {
	ID           string
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	Status       AccountStatus
	MFAMethod    MFAMethod
	FailedLogins int
	LockedUntil  *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary strips credential material and counters for external use.
func (p *Principal) Summary() PrincipalSummary {
	return PrincipalSummary{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Phone:       p.Phone,
		Status:      p.Status,
		MFAMethod:   p.MFAMethod,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
	}
}

// PrincipalSummary is the caller-facing view of a principal.
type PrincipalSummary struct {
	ID          string
	Username    string
	Email       string
	Phone       string
	Status      AccountStatus
	MFAMethod   MFAMethod
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// TokenPair is an access/refresh token pair issued to one principal.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// MFAChallenge is the pending second-factor step of a login. The code
// itself travels through the notification dispatcher, never through this
// struct.
type MFAChallenge struct {
	ChallengeID string
	Method      MFAMethod
	ExpiresAt   time.Time
}

// LoginResult is the outcome of a successful first-factor login: either a
// token pair, or a challenge to complete with VerifyOTC.
type LoginResult struct {
	MFARequired bool
	Challenge   *MFAChallenge
	Tokens      *TokenPair
	Principal   PrincipalSummary
}

// TokenInfo is what VerifyAccessToken reports about a live access token.
type TokenInfo struct {
	PrincipalID string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// APIKey is the stored form of an API key. Only the SHA-256 digest of the
// plaintext is persisted. A nil ExpiresAt means the key never expires.
type APIKey struct {
	ID         string
	UserID     string
	Name       string
	Digest     string
	Active     bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Summary strips the digest for listing.
func (k *APIKey) Summary() APIKeySummary {
	return APIKeySummary{
		ID:         k.ID,
		Name:       k.Name,
		Active:     k.Active,
		ExpiresAt:  k.ExpiresAt,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
	}
}

// APIKeySummary is the caller-facing view of an API key.
type APIKeySummary struct {
	ID         string
	Name       string
	Active     bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// CreatedAPIKey carries the plaintext key exactly once, at creation. The
// engine cannot reproduce it afterwards.
type CreatedAPIKey struct {
	APIKeySummary
	Plaintext string
}

// ResetToken is the stored form of a password reset token. As with API
// keys, only the digest is persisted.
type ResetToken struct {
	ID        string
	UserID    string
	Digest    string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExternalIdentity is a provider-verified identity handed to
// LoginWithProvider. The engine trusts the caller to have completed the
// provider handshake.
type ExternalIdentity struct {
	Provider  string
	SubjectID string
	Email     string
	Username  string
}

// SSOLinkage binds an external (provider, subject) pair to a principal.
type SSOLinkage struct {
	ID        string
	UserID    string
	Provider  string
	SubjectID string
	CreatedAt time.Time
}
