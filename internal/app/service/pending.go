package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
)

// PendingShares caches share drafts between DM steps. It holds at most one
// draft per key; size and age are both bounded so abandoned flows fade out.
type PendingShares struct {
	mu  sync.Mutex
	lru *expirable.LRU[domain.ShareKey, domain.PendingShare]
}

func NewPendingShares(size int, ttl time.Duration) *PendingShares {
	return &PendingShares{lru: expirable.NewLRU[domain.ShareKey, domain.PendingShare](size, nil, ttl)}
}

// Put replaces any draft already stored for the same key.
func (p *PendingShares) Put(s domain.PendingShare) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Add(s.Key(), s)
	p.report()
}

func (p *PendingShares) Get(k domain.ShareKey) (domain.PendingShare, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Get(k)
}

// Take removes and returns the draft; of two concurrent callers only one
// gets it.
func (p *PendingShares) Take(k domain.ShareKey) (domain.PendingShare, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.lru.Get(k)
	if ok {
		p.lru.Remove(k)
		p.report()
	}
	return s, ok
}

func (p *PendingShares) Delete(k domain.ShareKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Remove(k)
	p.report()
}

// DeleteUser drops every draft of (guild,user).
func (p *PendingShares) DeleteUser(guildID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.lru.Keys() {
		if k.GuildID == guildID && k.UserID == userID {
			p.lru.Remove(k)
		}
	}
	p.report()
}

func (p *PendingShares) Len() int { return p.lru.Len() }

func (p *PendingShares) report() {
	metrics.PendingShares.Set(float64(p.lru.Len()))
}
