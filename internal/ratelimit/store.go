// Package ratelimit implements fixed-window request counting with
// pluggable storage. The in-memory store is per-process; the Redis
// store shares counters across processes. Externally observable
// semantics are identical either way: the (limit+1)-th request inside
// one window is rejected, and counters reset exactly on the window
// boundary.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is one endpoint class's budget: at most Limit requests per
// Window per client key.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Result reports the outcome of one counted request.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store increments the counter for (rule, key) inside the current fixed
// window and reports whether the request fits the budget.
type Store interface {
	Incr(ctx context.Context, rule Rule, key string) (Result, error)
}

// MemoryStore is a mutex-guarded fixed-window counter map. The clock is
// injectable for tests; production uses time.Now.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemoryStore returns a per-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, windows: map[string]*window{}}
}

// NewMemoryStoreAt is like NewMemoryStore with an injected clock.
func NewMemoryStoreAt(now func() time.Time) *MemoryStore {
	return &MemoryStore{now: now, windows: map[string]*window{}}
}

// Incr counts one request against the rule's current window.
func (s *MemoryStore) Incr(ctx context.Context, rule Rule, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Windows are aligned to the epoch so every client shares the same
	// boundary instant.
	start := now.Truncate(rule.Window)
	k := rule.Name + ":" + key

	w, ok := s.windows[k]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		s.windows[k] = w
	}
	w.count++
	if w.count > rule.Limit {
		return Result{
			Allowed:    false,
			RetryAfter: start.Add(rule.Window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: rule.Limit - w.count}, nil
}

// RedisStore counts windows in Redis so limits hold across processes.
// The script increments the aligned-window key and sets its expiry in
// one atomic step.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	script *redis.Script
}

// NewRedisStore returns a shared counter store. prefix namespaces the
// keys ("rl" by default when empty).
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		script: redis.NewScript(`
			local n = redis.call('INCR', KEYS[1])
			if n == 1 then
				redis.call('PEXPIRE', KEYS[1], ARGV[1])
			end
			return n
		`),
	}
}

// Incr counts one request against the rule's current window.
func (s *RedisStore) Incr(ctx context.Context, rule Rule, key string) (Result, error) {
	now := time.Now()
	start := now.Truncate(rule.Window)
	windowEnd := start.Add(rule.Window)
	k := s.prefix + ":" + rule.Name + ":" + key + ":" + start.UTC().Format("20060102150405")

	n, err := s.script.Run(ctx, s.rdb, []string{k}, windowEnd.Sub(now).Milliseconds()).Int64()
	if err != nil {
		return Result{}, err
	}
	if int(n) > rule.Limit {
		return Result{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Result{Allowed: true, Remaining: rule.Limit - int(n)}, nil
}
