package crestauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/crestauth/crestauth"
)

func loginForChallenge(t *testing.T, engine *crestauth.Engine, notifier *recordingNotifier) (*crestauth.MFAChallenge, string) {
	t.Helper()

	result, err := engine.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !result.MFARequired || result.Challenge == nil {
		t.Fatal("expected an MFA challenge")
	}
	if result.Tokens != nil {
		t.Fatal("tokens issued before second factor")
	}

	code := notifier.lastOTC()
	if code == "" {
		t.Fatal("no code delivered")
	}
	return result.Challenge, code
}

func TestMFALoginFlow(t *testing.T) {
	engine, _, notifier := newTestEngine(t, testConfig())
	summary := registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	challenge, code := loginForChallenge(t, engine, notifier)
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}

	ctx := context.Background()
	pair, err := engine.VerifyOTC(ctx, challenge.ChallengeID, code)
	if err != nil {
		t.Fatalf("VerifyOTC failed: %v", err)
	}

	info, err := engine.VerifyAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if info.PrincipalID != summary.ID {
		t.Fatalf("token subject = %q, want %q", info.PrincipalID, summary.ID)
	}
}

func TestOTCReplayAfterSuccess(t *testing.T) {
	engine, _, notifier := newTestEngine(t, testConfig())
	registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	challenge, code := loginForChallenge(t, engine, notifier)

	ctx := context.Background()
	if _, err := engine.VerifyOTC(ctx, challenge.ChallengeID, code); err != nil {
		t.Fatalf("VerifyOTC failed: %v", err)
	}

	// The consumed challenge is gone; replaying the code reveals nothing.
	if _, err := engine.VerifyOTC(ctx, challenge.ChallengeID, code); !errors.Is(err, crestauth.ErrCodeNotFound) {
		t.Fatalf("replay = %v, want ErrCodeNotFound", err)
	}
}

func TestOTCAttemptBudget(t *testing.T) {
	cfg := testConfig()
	cfg.OTC.MaxAttempts = 3
	engine, _, notifier := newTestEngine(t, cfg)
	registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	challenge, code := loginForChallenge(t, engine, notifier)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := engine.VerifyOTC(ctx, challenge.ChallengeID, wrong); !errors.Is(err, crestauth.ErrInvalidCode) {
			t.Fatalf("wrong code %d = %v, want ErrInvalidCode", i+1, err)
		}
	}

	// Exhaustion burned the challenge; the real code is dead too.
	if _, err := engine.VerifyOTC(ctx, challenge.ChallengeID, code); !errors.Is(err, crestauth.ErrCodeNotFound) {
		t.Fatalf("post-exhaustion = %v, want ErrCodeNotFound", err)
	}
}

func TestReissueInvalidatesPriorChallenge(t *testing.T) {
	engine, _, notifier := newTestEngine(t, testConfig())
	registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	first, firstCode := loginForChallenge(t, engine, notifier)
	second, secondCode := loginForChallenge(t, engine, notifier)
	if first.ChallengeID == second.ChallengeID {
		t.Fatal("two logins shared a challenge ID")
	}

	// Only the most recent challenge is live.
	ctx := context.Background()
	if _, err := engine.VerifyOTC(ctx, first.ChallengeID, firstCode); !errors.Is(err, crestauth.ErrCodeNotFound) {
		t.Fatalf("superseded challenge = %v, want ErrCodeNotFound", err)
	}
	if _, err := engine.VerifyOTC(ctx, second.ChallengeID, secondCode); err != nil {
		t.Fatalf("current challenge failed: %v", err)
	}
}

func TestSMSCodeGoesToPhone(t *testing.T) {
	engine, _, notifier := newTestEngine(t, testConfig())

	_, err := engine.Register(context.Background(), crestauth.RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  testPassword,
		Phone:     "+15550001111",
		MFAMethod: crestauth.MFASMS,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	challenge, code := loginForChallenge(t, engine, notifier)
	if notifier.lastOTCDest() != "+15550001111" {
		t.Fatalf("code delivered to %q, want the phone number", notifier.lastOTCDest())
	}
	if challenge.Method != crestauth.MFASMS {
		t.Fatalf("challenge method = %q, want sms", challenge.Method)
	}
	if _, err := engine.VerifyOTC(context.Background(), challenge.ChallengeID, code); err != nil {
		t.Fatalf("VerifyOTC failed: %v", err)
	}
}

func TestOTCDeliveryFailureWithdrawsChallenge(t *testing.T) {
	engine, _, notifier := newTestEngine(t, testConfig())
	registerTestUser(t, engine, "alice", "alice@example.com", crestauth.MFAEmail)

	notifier.failOTC = true
	_, err := engine.Login(context.Background(), "alice", testPassword)
	if !errors.Is(err, crestauth.ErrDispatchFailure) {
		t.Fatalf("undeliverable code login = %v, want ErrDispatchFailure", err)
	}
}

func TestVerifyOTCUnknownChallenge(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	_, err := engine.VerifyOTC(context.Background(), "no-such-challenge", "123456")
	if !errors.Is(err, crestauth.ErrCodeNotFound) {
		t.Fatalf("unknown challenge = %v, want ErrCodeNotFound", err)
	}
}
