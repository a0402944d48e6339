package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// platform limit for message content
const maxContentLen = 2000

const (
	sessionsRule = "============"
	sessionsSub  = "------------"
)

// SessionService lists and retires posted announcements.
type SessionService struct {
	log      zerolog.Logger
	sessions SessionStore
	games    GameResolver
	msg      Messenger
}

func NewSessionService(log zerolog.Logger, sessions SessionStore, games GameResolver, msg Messenger) *SessionService {
	return &SessionService{
		log:      log.With().Str("component", "sessions").Logger(),
		sessions: sessions,
		games:    games,
		msg:      msg,
	}
}

func (s *SessionService) names(ctx context.Context, guildID string, sessions []domain.AnnouncementSession) map[string]string {
	var ids []string
	seen := map[string]bool{}
	for _, ss := range sessions {
		if !seen[ss.GameID] {
			seen[ss.GameID] = true
			ids = append(ids, ss.GameID)
		}
	}
	out := make(map[string]string, len(ids))
	games, err := s.games.GetAnyByIDs(ctx, guildID, ids)
	bestEffort(s.log, "resolve session games", err)
	for _, g := range games {
		out[g.ID] = g.Name
	}
	return out
}

// List renders the guild's active sessions grouped by game name.
func (s *SessionService) List(ctx context.Context, guildID, guildName string) (View, error) {
	active, err := s.sessions.ListActiveForGuild(ctx, guildID)
	if err != nil {
		return View{}, fmt.Errorf("list sessions: %w", err)
	}
	if len(active) == 0 {
		return text("No active sessions."), nil
	}
	names := s.names(ctx, guildID, active)
	nameOf := func(id string) string {
		if n := names[id]; n != "" {
			return n
		}
		return id
	}

	grouped := map[string][]domain.AnnouncementSession{}
	var order []string
	for _, ss := range active {
		if _, ok := grouped[ss.GameID]; !ok {
			order = append(order, ss.GameID)
		}
		grouped[ss.GameID] = append(grouped[ss.GameID], ss)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return strings.ToLower(nameOf(order[i])) < strings.ToLower(nameOf(order[j]))
	})

	if guildName == "" {
		guildName = "this guild"
	}
	parts := []string{fmt.Sprintf("**Active Sessions in %s**", guildName), sessionsRule}
	for _, id := range order {
		parts = append(parts, "**"+nameOf(id)+"**", sessionsSub, "__**User — Details — Since**__")
		for _, ss := range grouped[id] {
			parts = append(parts, fmt.Sprintf("- <@%s> — %s — <t:%d:R>",
				ss.UserID, domain.SessionLine(ss.DetailKind, ss.DetailValue), ss.CreatedAt.Unix()))
		}
		parts = append(parts, sessionsRule)
	}
	return text(truncRunes(strings.Join(parts, "\n"), maxContentLen)), nil
}

// ExpireForUser turns every live announcement of (guild,user) into a past
// tense notice and stops role sync on it. It returns how many were retired.
func (s *SessionService) ExpireForUser(ctx context.Context, guildID, userID string) (int, error) {
	active, err := s.sessions.ListActiveForUser(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}
	names := s.names(ctx, guildID, active)
	n := 0
	for _, ss := range active {
		log := s.log.With().Str("guild", guildID).Str("user", userID).Str("message", ss.MessageID).Logger()
		ref := MessageRef{ChannelID: ss.ChannelID, MessageID: ss.MessageID}
		title := ""
		if name := names[ss.GameID]; name != "" {
			title = fmt.Sprintf("🎮 **%s**", name)
		}
		past := View{Embeds: []Embed{{Title: title, Description: fmt.Sprintf("<@%s> was playing", userID)}}}
		bestEffort(log, "edit expired announcement", s.msg.EditMessage(ctx, ref, past))
		bestEffort(log, "clear reactions", s.msg.RemoveAllReactions(ctx, ref))
		if err := s.sessions.MarkInactive(ctx, ss.ID); err != nil {
			return n, fmt.Errorf("mark session inactive: %w", err)
		}
		n++
	}
	s.log.Debug().Str("guild", guildID).Str("user", userID).Int("count", n).Msg("expired sessions")
	return n, nil
}
