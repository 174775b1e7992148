package router

import (
	"context"
	"sync"
	"time"

	"fireside/pkg/types"
)

// RateLimiter admits client events with fixed-window counting per user,
// not per connection, so a user's open tabs share one budget.
type RateLimiter struct {
	mu        sync.Mutex
	users     map[string]*userWindow
	window    time.Duration
	maxEvents int

	// now is swappable for tests.
	now func() time.Time
}

// userWindow tracks one user's counter and its window reset time.
type userWindow struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter admitting at most maxEvents per user
// within each window.
func NewRateLimiter(window time.Duration, maxEvents int) *RateLimiter {
	return &RateLimiter{
		users:     make(map[string]*userWindow),
		window:    window,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// Allow decides admit or reject for one inbound event. A missing or
// expired entry starts a fresh window at count 1. At the cap the event is
// rejected without incrementing, so rejected traffic neither extends nor
// corrupts the window.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	entry, exists := rl.users[userID]
	if !exists || now.After(entry.resetAt) {
		rl.users[userID] = &userWindow{
			count:   1,
			resetAt: now.Add(rl.window),
		}
		return true
	}

	if entry.count >= rl.maxEvents {
		return false
	}

	entry.count++
	return true
}

// Sweep reclaims entries whose window has expired and which have not been
// renewed. Purely memory reclamation; Allow recreates entries on demand.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, entry := range rl.users {
		if now.After(entry.resetAt) {
			delete(rl.users, userID)
		}
	}
}

// Run sweeps on a period equal to the window length until ctx is
// cancelled. The ticker serializes sweeps so they never overlap.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Stats reports the limiter's current load and configuration.
func (rl *RateLimiter) Stats() types.RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return types.RateLimiterStats{
		TrackedUsers: len(rl.users),
		Window:       rl.window,
		MaxEvents:    rl.maxEvents,
	}
}
