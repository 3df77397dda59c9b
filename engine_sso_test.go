package crestauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/crestauth/crestauth"
)

func TestSSOFirstLoginProvisionsPrincipal(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())

	ctx := context.Background()
	result, err := engine.LoginWithProvider(ctx, crestauth.ExternalIdentity{
		Provider:  "github",
		SubjectID: "gh-7",
		Email:     "carol@example.com",
		Username:  "carol",
	})
	if err != nil {
		t.Fatalf("LoginWithProvider failed: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("no tokens issued")
	}
	if result.Principal.Email != "carol@example.com" {
		t.Fatalf("provisioned email = %q", result.Principal.Email)
	}

	stored, err := store.GetUser(ctx, result.Principal.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if stored.Status != crestauth.StatusActive {
		t.Fatalf("provisioned status = %q, want active", stored.Status)
	}

	// The provisioned account has no guessable password.
	if _, err := engine.Login(ctx, "carol", testPassword); !errors.Is(err, crestauth.ErrInvalidCredentials) {
		t.Fatalf("password login to SSO account = %v, want ErrInvalidCredentials", err)
	}
}

func TestSSORepeatLoginReusesPrincipal(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	ctx := context.Background()
	identity := crestauth.ExternalIdentity{
		Provider:  "github",
		SubjectID: "gh-7",
		Email:     "carol@example.com",
		Username:  "carol",
	}

	first, err := engine.LoginWithProvider(ctx, identity)
	if err != nil {
		t.Fatalf("first LoginWithProvider failed: %v", err)
	}
	second, err := engine.LoginWithProvider(ctx, identity)
	if err != nil {
		t.Fatalf("second LoginWithProvider failed: %v", err)
	}
	if first.Principal.ID != second.Principal.ID {
		t.Fatal("repeat provider login created a second principal")
	}
}

func TestSSOLinksToExistingAccountByEmail(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	summary := registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFADisabled)

	ctx := context.Background()
	result, err := engine.LoginWithProvider(ctx, crestauth.ExternalIdentity{
		Provider:  "github",
		SubjectID: "gh-42",
		Email:     "alice@example.com",
	})
	if err != nil {
		t.Fatalf("LoginWithProvider failed: %v", err)
	}
	if result.Principal.ID != summary.ID {
		t.Fatalf("linked principal = %q, want existing %q", result.Principal.ID, summary.ID)
	}
}

func TestSSOSkipsSecondFactor(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	result, err := engine.LoginWithProvider(context.Background(), crestauth.ExternalIdentity{
		Provider:  "github",
		SubjectID: "gh-42",
		Email:     "alice@example.com",
	})
	if err != nil {
		t.Fatalf("LoginWithProvider failed: %v", err)
	}
	if result.MFARequired || result.Tokens == nil {
		t.Fatal("provider login must not demand a second factor")
	}
}

func TestSSODisabledAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	summary := registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFADisabled)

	ctx := context.Background()
	identity := crestauth.ExternalIdentity{
		Provider:  "github",
		SubjectID: "gh-42",
		Email:     "alice@example.com",
	}
	if _, err := engine.LoginWithProvider(ctx, identity); err != nil {
		t.Fatalf("link login failed: %v", err)
	}
	if err := engine.SetAccountStatus(ctx, summary.ID, crestauth.StatusDisabled); err != nil {
		t.Fatalf("SetAccountStatus failed: %v", err)
	}

	if _, err := engine.LoginWithProvider(ctx, identity); !errors.Is(err, crestauth.ErrAccountDisabled) {
		t.Fatalf("disabled provider login = %v, want ErrAccountDisabled", err)
	}
}

func TestSSORejectsIncompleteIdentity(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	cases := []crestauth.ExternalIdentity{
		{SubjectID: "gh-7", Email: "carol@example.com"},
		{Provider: "github", Email: "carol@example.com"},
	}
	for _, identity := range cases {
		if _, err := engine.LoginWithProvider(context.Background(), identity); !errors.Is(err, crestauth.ErrValidation) {
			t.Fatalf("identity %+v = %v, want ErrValidation", identity, err)
		}
	}
}
