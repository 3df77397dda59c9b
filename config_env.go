package crestauth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig is the flat environment surface. Only the knobs that vary per
// deployment are exposed; everything else keeps its DefaultConfig value.
type envConfig struct {
	AccessSecret  string `env:"CRESTAUTH_JWT_ACCESS_SECRET"`
	RefreshSecret string `env:"CRESTAUTH_JWT_REFRESH_SECRET"`

	AccessTTL  time.Duration `env:"CRESTAUTH_JWT_ACCESS_TTL"`
	RefreshTTL time.Duration `env:"CRESTAUTH_JWT_REFRESH_TTL"`
	Issuer     string        `env:"CRESTAUTH_JWT_ISSUER"`
	Audience   string        `env:"CRESTAUTH_JWT_AUDIENCE"`

	BcryptCost         int           `env:"CRESTAUTH_PASSWORD_BCRYPT_COST"`
	LockoutMaxFailures int           `env:"CRESTAUTH_LOCKOUT_MAX_FAILURES"`
	LockoutDuration    time.Duration `env:"CRESTAUTH_LOCKOUT_DURATION"`

	OTCDigits      int           `env:"CRESTAUTH_OTC_DIGITS"`
	OTCTTL         time.Duration `env:"CRESTAUTH_OTC_TTL"`
	OTCMaxAttempts int           `env:"CRESTAUTH_OTC_MAX_ATTEMPTS"`

	ResetTokenTTL time.Duration `env:"CRESTAUTH_RESET_TOKEN_TTL"`

	LoginLimit       int           `env:"CRESTAUTH_RATE_LOGIN_LIMIT"`
	LoginWindow      time.Duration `env:"CRESTAUTH_RATE_LOGIN_WINDOW"`
	ResetReqLimit    int           `env:"CRESTAUTH_RATE_RESET_LIMIT"`
	ResetReqWindow   time.Duration `env:"CRESTAUTH_RATE_RESET_WINDOW"`
	StoreTimeout     time.Duration `env:"CRESTAUTH_STORE_TIMEOUT"`
	DispatchTimeout  time.Duration `env:"CRESTAUTH_DISPATCH_TIMEOUT"`
	AuditEnabled     *bool         `env:"CRESTAUTH_AUDIT_ENABLED"`
	MetricsEnabled   *bool         `env:"CRESTAUTH_METRICS_ENABLED"`
	AuditBufferSize  int           `env:"CRESTAUTH_AUDIT_BUFFER_SIZE"`
	APIKeyEntropy    int           `env:"CRESTAUTH_APIKEY_ENTROPY_BYTES"`
	PasswordMinLen   int           `env:"CRESTAUTH_PASSWORD_MIN_LENGTH"`
	UpgradeOnLogin   *bool         `env:"CRESTAUTH_PASSWORD_UPGRADE_ON_LOGIN"`
}

// ConfigFromEnv builds a Config from CRESTAUTH_* environment variables on
// top of DefaultConfig. A .env file in the working directory is loaded
// first when present; a missing file is not an error.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte(raw.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(raw.RefreshSecret)

	if raw.AccessTTL > 0 {
		cfg.JWT.AccessTTL = raw.AccessTTL
	}
	if raw.RefreshTTL > 0 {
		cfg.JWT.RefreshTTL = raw.RefreshTTL
	}
	if raw.Issuer != "" {
		cfg.JWT.Issuer = raw.Issuer
	}
	if raw.Audience != "" {
		cfg.JWT.Audience = raw.Audience
	}
	if raw.BcryptCost > 0 {
		cfg.Password.BcryptCost = raw.BcryptCost
	}
	if raw.PasswordMinLen > 0 {
		cfg.Password.MinLength = raw.PasswordMinLen
	}
	if raw.UpgradeOnLogin != nil {
		cfg.Password.UpgradeOnLogin = *raw.UpgradeOnLogin
	}
	if raw.LockoutMaxFailures > 0 {
		cfg.Lockout.MaxFailures = raw.LockoutMaxFailures
	}
	if raw.LockoutDuration > 0 {
		cfg.Lockout.Duration = raw.LockoutDuration
	}
	if raw.OTCDigits > 0 {
		cfg.OTC.Digits = raw.OTCDigits
	}
	if raw.OTCTTL > 0 {
		cfg.OTC.TTL = raw.OTCTTL
	}
	if raw.OTCMaxAttempts > 0 {
		cfg.OTC.MaxAttempts = raw.OTCMaxAttempts
	}
	if raw.ResetTokenTTL > 0 {
		cfg.Reset.TokenTTL = raw.ResetTokenTTL
	}
	if raw.APIKeyEntropy > 0 {
		cfg.APIKey.EntropyBytes = raw.APIKeyEntropy
	}
	if raw.LoginLimit > 0 {
		cfg.RateLimit.Login.Limit = raw.LoginLimit
	}
	if raw.LoginWindow > 0 {
		cfg.RateLimit.Login.Window = raw.LoginWindow
	}
	if raw.ResetReqLimit > 0 {
		cfg.RateLimit.ResetRequest.Limit = raw.ResetReqLimit
	}
	if raw.ResetReqWindow > 0 {
		cfg.RateLimit.ResetRequest.Window = raw.ResetReqWindow
	}
	if raw.StoreTimeout > 0 {
		cfg.StoreTimeout = raw.StoreTimeout
	}
	if raw.DispatchTimeout > 0 {
		cfg.DispatchTimeout = raw.DispatchTimeout
	}
	if raw.AuditEnabled != nil {
		cfg.Audit.Enabled = *raw.AuditEnabled
	}
	if raw.AuditBufferSize > 0 {
		cfg.Audit.BufferSize = raw.AuditBufferSize
	}
	if raw.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *raw.MetricsEnabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
