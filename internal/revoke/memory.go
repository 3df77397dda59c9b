package revoke

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry is a mutex-guarded in-process Registry. Expired entries
// are reaped lazily whenever the registry is touched.
type MemoryRegistry struct {
	mu         sync.Mutex
	revoked    map[string]time.Time
	watermarks map[string]watermarkEntry
	now        func() time.Time
}

type watermarkEntry struct {
	at        time.Time
	expiresAt time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		revoked:    make(map[string]time.Time),
		watermarks: make(map[string]watermarkEntry),
		now:        time.Now,
	}
}

func (r *MemoryRegistry) Add(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapLocked()
	r.revoked[jti] = r.now().Add(ttl)
	return nil
}

func (r *MemoryRegistry) Contains(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if r.now().After(expiry) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (r *MemoryRegistry) SetWatermark(_ context.Context, principalID string, t time.Time, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapLocked()
	r.watermarks[principalID] = watermarkEntry{
		at:        t,
		expiresAt: r.now().Add(ttl),
	}
	return nil
}

func (r *MemoryRegistry) Watermark(_ context.Context, principalID string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.watermarks[principalID]
	if !ok {
		return time.Time{}, false, nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.watermarks, principalID)
		return time.Time{}, false, nil
	}
	return entry.at, true, nil
}

func (r *MemoryRegistry) reapLocked() {
	now := r.now()
	for jti, expiry := range r.revoked {
		if now.After(expiry) {
			delete(r.revoked, jti)
		}
	}
	for principal, entry := range r.watermarks {
		if now.After(entry.expiresAt) {
			delete(r.watermarks, principal)
		}
	}
}
