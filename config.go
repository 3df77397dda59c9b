package crestauth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config is the full engine configuration. Build clones it, so a Config
// can be reused and mutating it after Build has no effect.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	OTC       OTCConfig
	Reset     ResetConfig
	APIKey    APIKeyConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// StoreTimeout bounds every entity store call issued by the engine.
	StoreTimeout time.Duration
	// DispatchTimeout bounds every notification delivery attempt.
	DispatchTimeout time.Duration
}

type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

type PasswordConfig struct {
	// BcryptCost is the hashing cost factor. Zero selects the bcrypt
	// default.
	BcryptCost int
	// MinLength is the minimum password length accepted by the policy.
	MinLength int
	// UpgradeOnLogin rehashes stored passwords at the configured cost
	// after a successful verify against a stale-cost hash.
	UpgradeOnLogin bool
}

type LockoutConfig struct {
	// MaxFailures is the consecutive failed-login count that trips a
	// lockout.
	MaxFailures int
	// Duration is how long a tripped lockout holds.
	Duration time.Duration
}

type OTCConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
}

type ResetConfig struct {
	// TokenTTL is the validity window of a password reset token.
	TokenTTL time.Duration
}

type APIKeyConfig struct {
	// EntropyBytes is the random length of a generated key.
	EntropyBytes int
}

// RateRule is a fixed-window budget for one action.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds one rule per limited action. A zero Limit
// disables that rule.
type RateLimitConfig struct {
	// Login is keyed by client IP.
	Login RateRule
	// ResetRequest is keyed by target email.
	ResetRequest RateRule
	// OTCVerify is keyed by challenge ID.
	OTCVerify RateRule
	// APIKeyCreate is keyed by owning principal.
	APIKeyCreate RateRule
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the calling flow when
	// the buffer is full. Dropped events are counted.
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the recommended baseline. Secrets are left empty
// and must be supplied by the host.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "auth-service",
			Audience:   "api",
		},
		Password: PasswordConfig{
			BcryptCost:     10,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			MaxFailures: 5,
			Duration:    15 * time.Minute,
		},
		OTC: OTCConfig{
			Digits:      6,
			TTL:         5 * time.Minute,
			MaxAttempts: 3,
		},
		Reset: ResetConfig{
			TokenTTL: time.Hour,
		},
		APIKey: APIKeyConfig{
			EntropyBytes: 32,
		},
		RateLimit: RateLimitConfig{
			Login:        RateRule{Limit: 20, Window: 15 * time.Minute},
			ResetRequest: RateRule{Limit: 3, Window: 15 * time.Minute},
			OTCVerify:    RateRule{Limit: 10, Window: 15 * time.Minute},
			APIKeyCreate: RateRule{Limit: 10, Window: 15 * time.Minute},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		StoreTimeout:    5 * time.Second,
		DispatchTimeout: 5 * time.Second,
	}
}

// Validate checks internal consistency. Build calls it, so hosts only
// need it when they want early feedback.
func (c Config) Validate() error {
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("JWT.AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT.RefreshSecret must be at least 32 bytes")
	}
	if subtle.ConstantTimeCompare(c.JWT.AccessSecret, c.JWT.RefreshSecret) == 1 {
		return errors.New("JWT access and refresh secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT TTLs must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must not be shorter than AccessTTL")
	}
	if c.Password.BcryptCost != 0 &&
		(c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("Password.BcryptCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password.MinLength must be at least 8")
	}
	if c.Lockout.MaxFailures <= 0 {
		return errors.New("Lockout.MaxFailures must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout.Duration must be positive")
	}
	if c.OTC.Digits < 4 || c.OTC.Digits > 10 {
		return errors.New("OTC.Digits must be between 4 and 10")
	}
	if c.OTC.TTL <= 0 {
		return errors.New("OTC.TTL must be positive")
	}
	if c.OTC.MaxAttempts <= 0 {
		return errors.New("OTC.MaxAttempts must be positive")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset.TokenTTL must be positive")
	}
	if c.APIKey.EntropyBytes < 32 {
		return errors.New("APIKey.EntropyBytes must be at least 32")
	}
	for _, rule := range []struct {
		name string
		rule RateRule
	}{
		{"Login", c.RateLimit.Login},
		{"ResetRequest", c.RateLimit.ResetRequest},
		{"OTCVerify", c.RateLimit.OTCVerify},
		{"APIKeyCreate", c.RateLimit.APIKeyCreate},
	} {
		if rule.rule.Limit > 0 && rule.rule.Window <= 0 {
			return fmt.Errorf("RateLimit.%s window must be positive when limited", rule.name)
		}
	}
	if c.StoreTimeout <= 0 {
		return errors.New("StoreTimeout must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return errors.New("DispatchTimeout must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
