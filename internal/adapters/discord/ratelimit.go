package discord

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const limiterUsers = 20000

// userLimiter allows one click per user per window. Idle users age out.
type userLimiter struct {
	mu  sync.Mutex
	win time.Duration
	lim *expirable.LRU[string, *rate.Limiter]
}

func newUserLimiter(window time.Duration) *userLimiter {
	ttl := 10 * window
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &userLimiter{win: window, lim: expirable.NewLRU[string, *rate.Limiter](limiterUsers, nil, ttl)}
}

func (l *userLimiter) Allow(userID string) bool {
	if l == nil || l.win <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.lim.Get(userID)
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.win), 1)
		l.lim.Add(userID, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}
