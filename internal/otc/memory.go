package otc

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process Store. Expired challenges are
// reaped lazily on access.
type MemoryStore struct {
	mu          sync.Mutex
	records     map[string]*Record
	byPrincipal map[string]string
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]*Record),
		byPrincipal: make(map[string]string),
		now:         time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, challengeID string, record *Record, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byPrincipal[record.PrincipalID]; ok {
		delete(s.records, prior)
	}

	clone := *record
	s.records[challengeID] = &clone
	s.byPrincipal[record.PrincipalID] = challengeID
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, challengeID, code string, maxAttempts int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[challengeID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().Unix() > record.ExpiresAt {
		s.removeLocked(challengeID, record)
		return nil, ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) == 1 {
		s.removeLocked(challengeID, record)
		clone := *record
		return &clone, nil
	}

	record.Attempts++
	if int(record.Attempts) >= maxAttempts {
		s.removeLocked(challengeID, record)
	}
	return nil, ErrMismatch
}

func (s *MemoryStore) Delete(_ context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[challengeID]
	if ok {
		s.removeLocked(challengeID, record)
	}
	return ok, nil
}

func (s *MemoryStore) removeLocked(challengeID string, record *Record) {
	delete(s.records, challengeID)
	if s.byPrincipal[record.PrincipalID] == challengeID {
		delete(s.byPrincipal, record.PrincipalID)
	}
}
