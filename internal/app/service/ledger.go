package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// Ledger evaluates and records the prompt gates for (guild, user, game) and
// for unknown presence names. Every check is a predicate over stored
// timestamps; nothing here schedules timers.
type Ledger struct {
	store    LedgerStore
	cooldown time.Duration
	now      func() time.Time
}

func NewLedger(store LedgerStore, cooldown time.Duration) *Ledger {
	return &Ledger{store: store, cooldown: cooldown, now: time.Now}
}

// SetClock swaps the time source; tests use it to move time forward.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func (l *Ledger) Now() time.Time { return l.now() }

// cooled reports whether the cooldown window since last has fully elapsed.
// Exactly at the threshold counts as elapsed.
func (l *Ledger) cooled(last *time.Time) bool {
	return last == nil || l.now().Sub(*last) >= l.cooldown
}

func (l *Ledger) CanPrompt(ctx context.Context, k domain.ShareKey) (bool, error) {
	last, err := l.store.LastPromptedAt(ctx, k)
	if err != nil {
		return false, err
	}
	return l.cooled(last), nil
}

func (l *Ledger) IsTimedOut(ctx context.Context, k domain.ShareKey) (bool, error) {
	until, err := l.store.TimeoutUntil(ctx, k)
	if err != nil || until == nil {
		return false, err
	}
	return until.After(l.now()), nil
}

func (l *Ledger) IsIgnored(ctx context.Context, k domain.ShareKey) (bool, error) {
	return l.store.IsIgnored(ctx, k)
}

func (l *Ledger) IsInFlight(ctx context.Context, k domain.ShareKey) (bool, error) {
	s, err := l.store.Status(ctx, k)
	return s == domain.ShareInFlight, err
}

func (l *Ledger) MarkPrompted(ctx context.Context, k domain.ShareKey) error {
	return l.store.TouchPrompted(ctx, k, l.now())
}

func (l *Ledger) SetTimeoutDays(ctx context.Context, k domain.ShareKey, days int) error {
	return l.store.SetTimeout(ctx, k, l.now().Add(time.Duration(days)*24*time.Hour))
}

func (l *Ledger) ClearTimeouts(ctx context.Context, guildID, userID string) (int64, error) {
	return l.store.ClearTimeoutsForUser(ctx, guildID, userID)
}

func (l *Ledger) Ignore(ctx context.Context, k domain.ShareKey) error {
	return l.store.SetIgnored(ctx, k, true)
}

func (l *Ledger) ClearIgnore(ctx context.Context, k domain.ShareKey) error {
	return l.store.SetIgnored(ctx, k, false)
}

func (l *Ledger) IgnoredGameIDs(ctx context.Context, guildID, userID string) ([]string, error) {
	return l.store.ListIgnoredGameIDs(ctx, guildID, userID)
}

func (l *Ledger) SetInFlight(ctx context.Context, k domain.ShareKey, inFlight bool) error {
	s := domain.ShareIdle
	if inFlight {
		s = domain.ShareInFlight
	}
	return l.store.SetStatus(ctx, k, s, l.now())
}

// TryAcquirePromptSlot moves k from IDLE to IN_FLIGHT atomically. Only one
// of several concurrent callers for the same key gets true.
func (l *Ledger) TryAcquirePromptSlot(ctx context.Context, k domain.ShareKey) (bool, error) {
	return l.store.TryAcquire(ctx, k, l.now())
}

// ResetInFlight releases every stuck negotiation of (guild,user).
func (l *Ledger) ResetInFlight(ctx context.Context, guildID, userID string) (int64, error) {
	return l.store.ResetInFlightForUser(ctx, guildID, userID, l.now())
}

// Gates is the result of the read-only prompt checks for one key.
type Gates struct {
	Ignored   bool
	TimedOut  bool
	CanPrompt bool
}

func (g Gates) Open() bool { return !g.Ignored && !g.TimedOut && g.CanPrompt }

// Check runs the ignore, timeout and cooldown checks concurrently.
func (l *Ledger) Check(ctx context.Context, k domain.ShareKey) (Gates, error) {
	var g Gates
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		g.Ignored, err = l.IsIgnored(ctx, k)
		return err
	})
	eg.Go(func() (err error) {
		g.TimedOut, err = l.IsTimedOut(ctx, k)
		return err
	})
	eg.Go(func() (err error) {
		g.CanPrompt, err = l.CanPrompt(ctx, k)
		return err
	})
	if err := eg.Wait(); err != nil {
		return Gates{}, err
	}
	return g, nil
}

// ShouldPromptUnknown is false for ignored names and inside the cooldown.
func (l *Ledger) ShouldPromptUnknown(ctx context.Context, guildID, userID, presenceName string) (bool, error) {
	ignored, err := l.store.IsUnknownIgnored(ctx, guildID, userID, presenceName)
	if err != nil || ignored {
		return false, err
	}
	last, err := l.store.UnknownLastPromptedAt(ctx, guildID, userID, presenceName)
	if err != nil {
		return false, err
	}
	return l.cooled(last), nil
}

func (l *Ledger) MarkUnknownPrompted(ctx context.Context, guildID, userID, presenceName string) error {
	return l.store.TouchUnknownPrompted(ctx, guildID, userID, presenceName, l.now())
}

func (l *Ledger) IgnoreUnknown(ctx context.Context, guildID, userID, presenceName string) error {
	return l.store.IgnoreUnknown(ctx, guildID, userID, presenceName)
}
