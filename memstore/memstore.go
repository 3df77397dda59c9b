// Package memstore is an in-process EntityStore for single-node hosts
// and tests. All state lives behind one mutex; records are cloned on the
// way in and out so callers never share memory with the store.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/crestauth/crestauth"
)

// Store implements crestauth.EntityStore in memory.
type Store struct {
	mu          sync.Mutex
	users       map[string]*crestauth.Principal
	apiKeys     map[string]*crestauth.APIKey
	resetTokens map[string]*crestauth.ResetToken
	linkages    map[string]*crestauth.SSOLinkage
}

func New() *Store {
	return &Store{
		users:       make(map[string]*crestauth.Principal),
		apiKeys:     make(map[string]*crestauth.APIKey),
		resetTokens: make(map[string]*crestauth.ResetToken),
		linkages:    make(map[string]*crestauth.SSOLinkage),
	}
}

func (s *Store) CreateUser(_ context.Context, user *crestauth.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return crestauth.ErrDuplicate
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) ||
			strings.EqualFold(existing.Email, user.Email) {
			return crestauth.ErrDuplicate
		}
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*crestauth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, crestauth.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*crestauth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return cloneUser(user), nil
		}
	}
	return nil, crestauth.ErrNotFound
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*crestauth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return nil, crestauth.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, id string, patch crestauth.PrincipalPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return crestauth.ErrNotFound
	}

	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.Status != nil {
		user.Status = *patch.Status
	}
	if patch.MFAMethod != nil {
		user.MFAMethod = *patch.MFAMethod
	}
	if patch.FailedLogins != nil {
		user.FailedLogins = *patch.FailedLogins
	}
	if patch.LockedUntil != nil {
		until := *patch.LockedUntil
		user.LockedUntil = &until
	} else if patch.ClearLockedUntil {
		user.LockedUntil = nil
	}
	if patch.LastLoginAt != nil {
		at := *patch.LastLoginAt
		user.LastLoginAt = &at
	}
	if patch.UpdatedAt != nil {
		user.UpdatedAt = *patch.UpdatedAt
	} else {
		user.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Store) CreateAPIKey(_ context.Context, key *crestauth.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[key.ID]; ok {
		return crestauth.ErrDuplicate
	}
	for _, existing := range s.apiKeys {
		if existing.Digest == key.Digest {
			return crestauth.ErrDuplicate
		}
	}

	s.apiKeys[key.ID] = cloneAPIKey(key)
	return nil
}

func (s *Store) GetAPIKey(_ context.Context, id string) (*crestauth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return nil, crestauth.ErrNotFound
	}
	return cloneAPIKey(key), nil
}

func (s *Store) FindAPIKeyByDigest(_ context.Context, digest string) (*crestauth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.apiKeys {
		if key.Digest == digest {
			return cloneAPIKey(key), nil
		}
	}
	return nil, crestauth.ErrNotFound
}

func (s *Store) ListAPIKeysByUser(_ context.Context, userID string) ([]*crestauth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []*crestauth.APIKey
	for _, key := range s.apiKeys {
		if key.UserID == userID {
			keys = append(keys, cloneAPIKey(key))
		}
	}
	return keys, nil
}

func (s *Store) UpdateAPIKey(_ context.Context, id string, patch crestauth.APIKeyPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return crestauth.ErrNotFound
	}
	if patch.Active != nil {
		key.Active = *patch.Active
	}
	if patch.LastUsedAt != nil {
		at := *patch.LastUsedAt
		key.LastUsedAt = &at
	}
	return nil
}

func (s *Store) CreateResetToken(_ context.Context, token *crestauth.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resetTokens[token.ID]; ok {
		return crestauth.ErrDuplicate
	}

	clone := *token
	s.resetTokens[token.ID] = &clone
	return nil
}

func (s *Store) FindResetTokenByDigest(_ context.Context, digest string) (*crestauth.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.resetTokens {
		if token.Digest == digest {
			clone := *token
			return &clone, nil
		}
	}
	return nil, crestauth.ErrNotFound
}

func (s *Store) UpdateResetToken(_ context.Context, id string, patch crestauth.ResetTokenPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.resetTokens[id]
	if !ok {
		return crestauth.ErrNotFound
	}
	if patch.Used != nil {
		token.Used = *patch.Used
	}
	return nil
}

func (s *Store) InvalidateResetTokensForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.resetTokens {
		if token.UserID == userID {
			token.Used = true
		}
	}
	return nil
}

func (s *Store) CreateSSOLinkage(_ context.Context, linkage *crestauth.SSOLinkage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkageKey(linkage.Provider, linkage.SubjectID)
	if _, ok := s.linkages[key]; ok {
		return crestauth.ErrDuplicate
	}

	clone := *linkage
	s.linkages[key] = &clone
	return nil
}

func (s *Store) FindSSOLinkage(_ context.Context, provider, subjectID string) (*crestauth.SSOLinkage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	linkage, ok := s.linkages[linkageKey(provider, subjectID)]
	if !ok {
		return nil, crestauth.ErrNotFound
	}
	clone := *linkage
	return &clone, nil
}

func linkageKey(provider, subjectID string) string {
	return provider + "\x00" + subjectID
}

func cloneUser(user *crestauth.Principal) *crestauth.Principal {
	clone := *user
	if user.LockedUntil != nil {
		until := *user.LockedUntil
		clone.LockedUntil = &until
	}
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		clone.LastLoginAt = &at
	}
	return &clone
}

func cloneAPIKey(key *crestauth.APIKey) *crestauth.APIKey {
	clone := *key
	if key.ExpiresAt != nil {
		at := *key.ExpiresAt
		clone.ExpiresAt = &at
	}
	if key.LastUsedAt != nil {
		at := *key.LastUsedAt
		clone.LastUsedAt = &at
	}
	return &clone
}
