package crestauth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crestauth/crestauth"
	"github.com/crestauth/crestauth/memstore"
)

const testPassword = "Str0ng!Pass1"

type recordingNotifier struct {
	mu          sync.Mutex
	otcCodes    []string
	otcDests    []string
	resetTokens []string
	lockedSent  int
	failOTC     bool
	failReset   bool
}

func (n *recordingNotifier) SendOTC(_ context.Context, destination, code string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOTC {
		return context.DeadlineExceeded
	}
	n.otcCodes = append(n.otcCodes, code)
	n.otcDests = append(n.otcDests, destination)
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ string, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failReset {
		return context.DeadlineExceeded
	}
	n.resetTokens = append(n.resetTokens, token)
	return nil
}

func (n *recordingNotifier) SendAccountLocked(context.Context, string, time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lockedSent++
	return nil
}

func (n *recordingNotifier) lastOTC() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.otcCodes) == 0 {
		return ""
	}
	return n.otcCodes[len(n.otcCodes)-1]
}

func (n *recordingNotifier) lastOTCDest() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.otcDests) == 0 {
		return ""
	}
	return n.otcDests[len(n.otcDests)-1]
}

func (n *recordingNotifier) lastResetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resetTokens) == 0 {
		return ""
	}
	return n.resetTokens[len(n.resetTokens)-1]
}

func testConfig() crestauth.Config {
	cfg := crestauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	cfg.Password.BcryptCost = bcrypt.MinCost
	return cfg
}

func newTestEngine(t *testing.T, cfg crestauth.Config) (*crestauth.Engine, *memstore.Store, *recordingNotifier) {
	t.Helper()

	store := memstore.New()
	notifier := &recordingNotifier{}

	engine, err := crestauth.New().
		WithConfig(cfg).
		WithStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store, notifier
}

func registerTestUser(t *testing.T, engine *crestauth.Engine, username, email string, mfa crestauth.MFAMethod) *crestauth.PrincipalSummary {
	t.Helper()

	summary, err := engine.Register(context.Background(), crestauth.RegisterRequest{
		Username:  username,
		Email:     email,
		Password:  testPassword,
		MFAMethod: mfa,
	})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return summary
}

func TestEngineClosedRejectsCalls(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	engine.Close()

	_, err := engine.Login(context.Background(), "alice", testPassword)
	if err != crestauth.ErrEngineClosed {
		t.Fatalf("Login after Close = %v, want ErrEngineClosed", err)
	}
	_, err = engine.VerifyAccessToken(context.Background(), "token")
	if err != crestauth.ErrEngineClosed {
		t.Fatalf("VerifyAccessToken after Close = %v, want ErrEngineClosed", err)
	}
}
