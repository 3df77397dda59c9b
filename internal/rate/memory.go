package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a mutex-guarded in-process Limiter. Stale windows are
// reaped lazily on access.
type MemoryLimiter struct {
	mu      sync.Mutex
	rules   Rules
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(rules Rules) *MemoryLimiter {
	return &MemoryLimiter{
		rules:   rules,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func counterKey(action Action, key string) string {
	return string(action) + ":" + key
}

func (l *MemoryLimiter) Allow(_ context.Context, action Action, key string) (time.Duration, error) {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[counterKey(action, key)]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if now.After(w.resetAt) {
		delete(l.windows, counterKey(action, key))
		return 0, nil
	}
	if w.count >= rule.Limit {
		return w.resetAt.Sub(now), ErrLimited
	}
	return 0, nil
}

func (l *MemoryLimiter) Record(_ context.Context, action Action, key string) error {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[counterKey(action, key)]
	if !ok || now.After(w.resetAt) {
		l.windows[counterKey(action, key)] = &window{
			count:   1,
			resetAt: now.Add(rule.Window),
		}
		return nil
	}
	w.count++
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, action Action, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, counterKey(action, key))
	return nil
}
