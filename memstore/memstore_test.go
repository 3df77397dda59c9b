package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crestauth/crestauth"
)

func testUser(id, username, email string) *crestauth.Principal {
	now := time.Now()
	return &crestauth.Principal{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Status:       crestauth.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	cases := []*crestauth.Principal{
		testUser("u1", "other", "other@example.com"),
		testUser("u2", "alice", "fresh@example.com"),
		testUser("u3", "ALICE", "fresh@example.com"),
		testUser("u4", "fresh", "Alice@Example.com"),
	}
	for _, user := range cases {
		if err := store.CreateUser(ctx, user); !errors.Is(err, crestauth.ErrDuplicate) {
			t.Fatalf("CreateUser(%s/%s/%s) = %v, want ErrDuplicate", user.ID, user.Username, user.Email, err)
		}
	}
}

func TestFindUserIsCaseInsensitive(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := store.FindUserByUsername(ctx, "ALICE"); err != nil {
		t.Fatalf("FindUserByUsername failed: %v", err)
	}
	if _, err := store.FindUserByEmail(ctx, "Alice@Example.COM"); err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if _, err := store.FindUserByUsername(ctx, "bob"); !errors.Is(err, crestauth.ErrNotFound) {
		t.Fatalf("unknown username = %v, want ErrNotFound", err)
	}
}

func TestUpdateUserPatchSemantics(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	until := time.Now().Add(time.Hour)
	failures := 3
	if err := store.UpdateUser(ctx, "u1", crestauth.PrincipalPatch{
		FailedLogins: &failures,
		LockedUntil:  &until,
	}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	user, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.FailedLogins != 3 || user.LockedUntil == nil {
		t.Fatalf("patch not applied: failures=%d locked=%v", user.FailedLogins, user.LockedUntil)
	}
	// Untouched fields survive.
	if user.Username != "alice" || user.PasswordHash != "$2a$10$hash" {
		t.Fatalf("unrelated fields changed: %+v", user)
	}

	zero := 0
	if err := store.UpdateUser(ctx, "u1", crestauth.PrincipalPatch{
		FailedLogins:     &zero,
		ClearLockedUntil: true,
	}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	user, err = store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.FailedLogins != 0 || user.LockedUntil != nil {
		t.Fatalf("clear not applied: failures=%d locked=%v", user.FailedLogins, user.LockedUntil)
	}

	if err := store.UpdateUser(ctx, "nope", crestauth.PrincipalPatch{}); !errors.Is(err, crestauth.ErrNotFound) {
		t.Fatalf("unknown id = %v, want ErrNotFound", err)
	}
}

func TestReturnedRecordsAreDetached(t *testing.T) {
	store := New()
	ctx := context.Background()

	original := testUser("u1", "alice", "alice@example.com")
	if err := store.CreateUser(ctx, original); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	original.Username = "mutated"

	first, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	first.Username = "mutated-again"

	second, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if second.Username != "alice" {
		t.Fatalf("stored record mutated through a returned pointer: %q", second.Username)
	}
}

func TestAPIKeyDigestUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	key := &crestauth.APIKey{ID: "k1", UserID: "u1", Name: "ci", Digest: "d1", Active: true, CreatedAt: now}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	dup := &crestauth.APIKey{ID: "k2", UserID: "u2", Name: "other", Digest: "d1", Active: true, CreatedAt: now}
	if err := store.CreateAPIKey(ctx, dup); !errors.Is(err, crestauth.ErrDuplicate) {
		t.Fatalf("duplicate digest = %v, want ErrDuplicate", err)
	}

	found, err := store.FindAPIKeyByDigest(ctx, "d1")
	if err != nil {
		t.Fatalf("FindAPIKeyByDigest failed: %v", err)
	}
	if found.ID != "k1" {
		t.Fatalf("found key %q, want k1", found.ID)
	}

	active := false
	if err := store.UpdateAPIKey(ctx, "k1", crestauth.APIKeyPatch{Active: &active}); err != nil {
		t.Fatalf("UpdateAPIKey failed: %v", err)
	}
	found, err = store.FindAPIKeyByDigest(ctx, "d1")
	if err != nil {
		t.Fatalf("FindAPIKeyByDigest failed: %v", err)
	}
	if found.Active {
		t.Fatal("revocation not persisted")
	}
}

func TestGetAPIKeyByID(t *testing.T) {
	store := New()
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	key := &crestauth.APIKey{ID: "k1", UserID: "u1", Digest: "d1", Active: true, ExpiresAt: &expiry, CreatedAt: time.Now()}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	found, err := store.GetAPIKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if found.UserID != "u1" || found.ExpiresAt == nil || !found.ExpiresAt.Equal(expiry) {
		t.Fatalf("key round trip lost fields: %+v", found)
	}

	if _, err := store.GetAPIKey(ctx, "nope"); !errors.Is(err, crestauth.ErrNotFound) {
		t.Fatalf("unknown id = %v, want ErrNotFound", err)
	}
}

func TestListAPIKeysByUserScoping(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	for _, key := range []*crestauth.APIKey{
		{ID: "k1", UserID: "u1", Digest: "d1", Active: true, CreatedAt: now},
		{ID: "k2", UserID: "u1", Digest: "d2", Active: true, CreatedAt: now},
		{ID: "k3", UserID: "u2", Digest: "d3", Active: true, CreatedAt: now},
	} {
		if err := store.CreateAPIKey(ctx, key); err != nil {
			t.Fatalf("CreateAPIKey %s failed: %v", key.ID, err)
		}
	}

	keys, err := store.ListAPIKeysByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAPIKeysByUser failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("listed %d keys, want 2", len(keys))
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	token := &crestauth.ResetToken{ID: "r1", UserID: "u1", Digest: "rd1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	if err := store.CreateResetToken(ctx, token); err != nil {
		t.Fatalf("CreateResetToken failed: %v", err)
	}

	found, err := store.FindResetTokenByDigest(ctx, "rd1")
	if err != nil {
		t.Fatalf("FindResetTokenByDigest failed: %v", err)
	}
	if found.Used {
		t.Fatal("fresh token marked used")
	}

	used := true
	if err := store.UpdateResetToken(ctx, "r1", crestauth.ResetTokenPatch{Used: &used}); err != nil {
		t.Fatalf("UpdateResetToken failed: %v", err)
	}
	found, err = store.FindResetTokenByDigest(ctx, "rd1")
	if err != nil {
		t.Fatalf("FindResetTokenByDigest failed: %v", err)
	}
	if !found.Used {
		t.Fatal("burn not persisted")
	}
}

func TestInvalidateResetTokensForUser(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	for _, token := range []*crestauth.ResetToken{
		{ID: "r1", UserID: "u1", Digest: "rd1", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "r2", UserID: "u1", Digest: "rd2", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "r3", UserID: "u2", Digest: "rd3", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	} {
		if err := store.CreateResetToken(ctx, token); err != nil {
			t.Fatalf("CreateResetToken %s failed: %v", token.ID, err)
		}
	}

	if err := store.InvalidateResetTokensForUser(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateResetTokensForUser failed: %v", err)
	}

	for digest, wantUsed := range map[string]bool{"rd1": true, "rd2": true, "rd3": false} {
		found, err := store.FindResetTokenByDigest(ctx, digest)
		if err != nil {
			t.Fatalf("FindResetTokenByDigest(%s) failed: %v", digest, err)
		}
		if found.Used != wantUsed {
			t.Fatalf("token %s used = %v, want %v", digest, found.Used, wantUsed)
		}
	}

	// No tokens for the principal is not an error.
	if err := store.InvalidateResetTokensForUser(ctx, "u9"); err != nil {
		t.Fatalf("no-op invalidate = %v, want nil", err)
	}
}

func TestSSOLinkageLookup(t *testing.T) {
	store := New()
	ctx := context.Background()

	linkage := &crestauth.SSOLinkage{Provider: "github", SubjectID: "gh-7", UserID: "u1", CreatedAt: time.Now()}
	if err := store.CreateSSOLinkage(ctx, linkage); err != nil {
		t.Fatalf("CreateSSOLinkage failed: %v", err)
	}
	if err := store.CreateSSOLinkage(ctx, linkage); !errors.Is(err, crestauth.ErrDuplicate) {
		t.Fatalf("duplicate linkage = %v, want ErrDuplicate", err)
	}

	found, err := store.FindSSOLinkage(ctx, "github", "gh-7")
	if err != nil {
		t.Fatalf("FindSSOLinkage failed: %v", err)
	}
	if found.UserID != "u1" {
		t.Fatalf("linkage user = %q, want u1", found.UserID)
	}

	if _, err := store.FindSSOLinkage(ctx, "github", "gh-8"); !errors.Is(err, crestauth.ErrNotFound) {
		t.Fatalf("unknown linkage = %v, want ErrNotFound", err)
	}
}
