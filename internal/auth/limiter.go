package auth

import (
	"context"
	"sync"
	"time"
)

// Limiter tracks failed sign-ins per email.
type Limiter interface {
	IsLockedOut(ctx context.Context, key string) (bool, error)
	// IncrementFailure returns the new failure count.
	IncrementFailure(ctx context.Context, key string) (int64, error)
	ClearFailures(ctx context.Context, key string) error
	SetLockout(ctx context.Context, key string) error
}

const (
	lockoutThreshold = 10
	LockoutDuration  = 15 * time.Minute
	FailureWindow    = 10 * time.Minute
)

type failures struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter is a Limiter for a single process.
type MemoryLimiter struct {
	mu       sync.Mutex
	failures map[string]failures
	locked   map[string]time.Time
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		failures: make(map[string]failures),
		locked:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) IsLockedOut(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.locked[key]
	if !ok {
		return false, nil
	}
	if l.now().After(until) {
		delete(l.locked, key)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLimiter) IncrementFailure(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	f := l.failures[key]
	if now.After(f.resetAt) {
		f = failures{resetAt: now.Add(FailureWindow)}
	}
	f.count++
	l.failures[key] = f

	return f.count, nil
}

func (l *MemoryLimiter) ClearFailures(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLimiter) SetLockout(_ context.Context, key string) error {
	l.mu.Lock()
	l.locked[key] = l.now().Add(LockoutDuration)
	delete(l.failures, key)
	l.mu.Unlock()
	return nil
}
