package crestauth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/crestauth/crestauth"
	"github.com/crestauth/crestauth/memstore"
)

func TestDefaultConfigValidatesWithSecrets(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*crestauth.Config)
	}{
		{"short access secret", func(c *crestauth.Config) { c.JWT.AccessSecret = []byte("short") }},
		{"short refresh secret", func(c *crestauth.Config) { c.JWT.RefreshSecret = []byte("short") }},
		{"equal secrets", func(c *crestauth.Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }},
		{"zero access ttl", func(c *crestauth.Config) { c.JWT.AccessTTL = 0 }},
		{"refresh shorter than access", func(c *crestauth.Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL - time.Minute }},
		{"bcrypt cost out of range", func(c *crestauth.Config) { c.Password.BcryptCost = 99 }},
		{"min length below floor", func(c *crestauth.Config) { c.Password.MinLength = 6 }},
		{"zero lockout budget", func(c *crestauth.Config) { c.Lockout.MaxFailures = 0 }},
		{"otc digits too few", func(c *crestauth.Config) { c.OTC.Digits = 3 }},
		{"otc digits too many", func(c *crestauth.Config) { c.OTC.Digits = 11 }},
		{"zero otc attempts", func(c *crestauth.Config) { c.OTC.MaxAttempts = 0 }},
		{"zero reset ttl", func(c *crestauth.Config) { c.Reset.TokenTTL = 0 }},
		{"thin api key entropy", func(c *crestauth.Config) { c.APIKey.EntropyBytes = 16 }},
		{"limited rule without window", func(c *crestauth.Config) {
			c.RateLimit.Login = crestauth.RateRule{Limit: 5}
		}},
		{"zero store timeout", func(c *crestauth.Config) { c.StoreTimeout = 0 }},
	}

	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: Validate accepted a broken config", tc.name)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CRESTAUTH_JWT_ACCESS_SECRET", "env-access-secret-0123456789abcdefgh")
	t.Setenv("CRESTAUTH_JWT_REFRESH_SECRET", "env-refresh-secret-0123456789abcdefgh")
	t.Setenv("CRESTAUTH_JWT_ISSUER", "edge-auth")
	t.Setenv("CRESTAUTH_JWT_ACCESS_TTL", "10m")
	t.Setenv("CRESTAUTH_LOCKOUT_MAX_FAILURES", "3")
	t.Setenv("CRESTAUTH_OTC_DIGITS", "8")
	t.Setenv("CRESTAUTH_AUDIT_ENABLED", "false")

	cfg, err := crestauth.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.JWT.Issuer != "edge-auth" {
		t.Fatalf("Issuer = %q, want edge-auth", cfg.JWT.Issuer)
	}
	if cfg.JWT.AccessTTL != 10*time.Minute {
		t.Fatalf("AccessTTL = %s, want 10m", cfg.JWT.AccessTTL)
	}
	if cfg.Lockout.MaxFailures != 3 {
		t.Fatalf("MaxFailures = %d, want 3", cfg.Lockout.MaxFailures)
	}
	if cfg.OTC.Digits != 8 {
		t.Fatalf("OTC.Digits = %d, want 8", cfg.OTC.Digits)
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit should be disabled")
	}
	// Untouched knobs keep their defaults.
	if cfg.JWT.RefreshTTL != crestauth.DefaultConfig().JWT.RefreshTTL {
		t.Fatalf("RefreshTTL = %s, want default", cfg.JWT.RefreshTTL)
	}
}

func TestConfigFromEnvRequiresSecrets(t *testing.T) {
	t.Setenv("CRESTAUTH_JWT_ACCESS_SECRET", "")
	t.Setenv("CRESTAUTH_JWT_REFRESH_SECRET", "")

	if _, err := crestauth.ConfigFromEnv(); err == nil {
		t.Fatal("ConfigFromEnv accepted empty secrets")
	}
}

func TestBuilderRequiresStore(t *testing.T) {
	_, err := crestauth.New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("Build succeeded without a store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	builder := crestauth.New().WithConfig(testConfig()).WithStore(memstore.New())

	first, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	t.Cleanup(first.Close)

	if _, err := builder.Build(); err == nil {
		t.Fatal("second Build on the same builder succeeded")
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{crestauth.ErrInvalidCredentials, "invalid_credentials"},
		{&crestauth.LockoutError{Until: time.Now()}, "account_locked"},
		{&crestauth.RateLimitError{RetryAfter: time.Minute}, "rate_limited"},
		{crestauth.ErrWeakPassword, "weak_password"},
		{crestauth.ErrForbidden, "forbidden"},
		{crestauth.ErrInvalidToken, "invalid_token"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := crestauth.ErrorCode(tc.err); got != tc.code {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}
