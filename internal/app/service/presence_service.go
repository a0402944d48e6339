package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/stlmattjohnson/gameshare-bot/internal/catalog"
	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// PresenceEvent is a change of a member's playing activity. OldName is
// empty when the platform did not report the previous presence.
type PresenceEvent struct {
	GuildID string
	UserID  string
	OldName string
	NewName string
}

const (
	presenceTrackSize = 50000
	presenceTrackTTL  = 24 * time.Hour
)

type PresenceDeps struct {
	Ledger   *Ledger
	Games    GameResolver
	Guilds   GuildStore
	Users    UserStore
	Share    *ShareService
	Requests *RequestService
	Sessions *SessionService
	// Debounce is the minimum gap between handled events per (guild,user).
	Debounce time.Duration
}

// PresenceService decides, for every presence change, whether to retire old
// announcements and whether to open a share or request prompt.
type PresenceService struct {
	log zerolog.Logger
	PresenceDeps
	// last seen playing name per guild:user
	names    *expirable.LRU[string, string]
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewPresenceService(log zerolog.Logger, deps PresenceDeps) *PresenceService {
	return &PresenceService{
		log:          log.With().Str("component", "presence").Logger(),
		PresenceDeps: deps,
		names:        expirable.NewLRU[string, string](presenceTrackSize, nil, presenceTrackTTL),
		limiters:     expirable.NewLRU[string, *rate.Limiter](presenceTrackSize, nil, time.Hour),
	}
}

// allow reports whether the event for key falls outside the debounce window.
func (s *PresenceService) allow(key string) bool {
	if s.Debounce <= 0 {
		return true
	}
	l, ok := s.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rate.Every(s.Debounce), 1)
		s.limiters.Add(key, l)
	}
	return l.Allow()
}

func (s *PresenceService) Handle(ctx context.Context, ev PresenceEvent) error {
	if ev.GuildID == "" || ev.UserID == "" {
		return nil
	}
	key := ev.GuildID + ":" + ev.UserID
	if !s.allow(key) {
		return nil
	}

	oldName := ev.OldName
	if oldName == "" {
		oldName, _ = s.names.Get(key)
	}
	if ev.NewName == "" {
		s.names.Remove(key)
	} else {
		s.names.Add(key, ev.NewName)
	}

	log := s.log.With().Str("guild", ev.GuildID).Str("user", ev.UserID).Logger()
	if oldName != "" && oldName != ev.NewName {
		_, err := s.Sessions.ExpireForUser(ctx, ev.GuildID, ev.UserID)
		bestEffort(log, "expire sessions", err)
	}
	if ev.NewName == "" || oldName == ev.NewName {
		return nil
	}

	opted, err := s.Users.IsOptedIn(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return fmt.Errorf("opt-in lookup: %w", err)
	}
	if !opted {
		return nil
	}

	game, err := s.Games.ResolveByPresenceText(ctx, ev.GuildID, ev.NewName)
	if errors.Is(err, catalog.ErrNotFound) {
		return s.unknown(ctx, ev.GuildID, ev.UserID, ev.NewName, false)
	}
	if err != nil {
		return fmt.Errorf("resolve presence: %w", err)
	}
	enabled, err := s.Guilds.IsGameEnabled(ctx, ev.GuildID, game.ID)
	if err != nil {
		return fmt.Errorf("game enabled: %w", err)
	}
	if !enabled {
		return s.unknown(ctx, ev.GuildID, ev.UserID, game.Name, true)
	}

	k := domain.ShareKey{GuildID: ev.GuildID, UserID: ev.UserID, GameID: game.ID}
	gates, err := s.Ledger.Check(ctx, k)
	if err != nil {
		return fmt.Errorf("prompt gates: %w", err)
	}
	if !gates.Open() {
		log.Debug().Str("game", game.ID).Bool("ignored", gates.Ignored).Bool("timed_out", gates.TimedOut).
			Bool("can_prompt", gates.CanPrompt).Msg("prompt gated")
		return nil
	}
	acquired, err := s.Ledger.TryAcquirePromptSlot(ctx, k)
	if err != nil {
		return fmt.Errorf("acquire prompt slot: %w", err)
	}
	if !acquired {
		log.Debug().Str("game", game.ID).Msg("prompt already in flight")
		return nil
	}
	if err := s.Ledger.MarkPrompted(ctx, k); err != nil {
		s.Share.release(ctx, k)
		return fmt.Errorf("mark prompted: %w", err)
	}
	if err := s.Share.SendPrompt(ctx, k, game.Name); err != nil {
		s.Share.release(ctx, k)
		if errors.Is(err, ErrDMClosed) {
			log.Info().Str("game", game.ID).Msg("user does not accept DMs")
			return nil
		}
		return err
	}
	return nil
}

func (s *PresenceService) unknown(ctx context.Context, guildID, userID, name string, disabled bool) error {
	ok, err := s.Ledger.ShouldPromptUnknown(ctx, guildID, userID, name)
	if err != nil {
		return fmt.Errorf("unknown gates: %w", err)
	}
	if !ok {
		return nil
	}
	err = s.Requests.SendUnknownPrompt(ctx, guildID, userID, name, disabled)
	if errors.Is(err, ErrDMClosed) {
		return nil
	}
	return err
}
