package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
	"github.com/stlmattjohnson/gameshare-bot/internal/ux"
)

const (
	configurePageSize = 20
	statusMaxNames    = 25
	statusMaxMissing  = 10
)

const (
	msgCannotPost     = "I can't post in that channel. Grant **View Channel** + **Send Messages**."
	msgNotTextChannel = "Please select a text channel."
	cmdConfigure      = "`/gameshare admin configure-games`"
)

type configureBoard struct {
	GuildID string
	Query   string
	Page    int
}

type GuildDeps struct {
	Games    GameResolver
	Guilds   GuildStore
	Messages Messenger
	Roles    RoleManager
	// RolePrefix is prepended to game names for created roles.
	RolePrefix string
	BoardTTL   time.Duration
}

// GuildService covers the admin configuration commands.
type GuildService struct {
	log zerolog.Logger
	GuildDeps
	boards *ux.Store[configureBoard]
}

func NewGuildService(log zerolog.Logger, deps GuildDeps) *GuildService {
	return &GuildService{
		log:       log.With().Str("component", "guild").Logger(),
		GuildDeps: deps,
		boards:    ux.NewStore[configureBoard](deps.BoardTTL, nil),
	}
}

// checkChannel returns a user-facing refusal, or "" when the bot can post.
func (s *GuildService) checkChannel(ctx context.Context, guildID, channelID string) (string, error) {
	if err := s.Messages.ResolveTextChannel(ctx, guildID, channelID); err != nil {
		if errors.Is(err, ErrChannelUnavailable) {
			return msgNotTextChannel, nil
		}
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	ok, err := s.Messages.CanPost(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("channel permissions: %w", err)
	}
	if !ok {
		return msgCannotPost, nil
	}
	return "", nil
}

func (s *GuildService) SetAnnounceChannel(ctx context.Context, guildID, channelID string) (View, error) {
	if refusal, err := s.checkChannel(ctx, guildID, channelID); err != nil || refusal != "" {
		return text(refusal), err
	}
	if err := s.Guilds.SetAnnounceChannel(ctx, guildID, channelID); err != nil {
		return View{}, fmt.Errorf("set announce channel: %w", err)
	}
	s.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("announce channel set")
	return text(fmt.Sprintf("✅ Announce channel set to <#%s>", channelID)), nil
}

func (s *GuildService) SetRequestChannel(ctx context.Context, guildID, channelID string) (View, error) {
	if refusal, err := s.checkChannel(ctx, guildID, channelID); err != nil || refusal != "" {
		return text(refusal), err
	}
	if err := s.Guilds.SetRequestChannel(ctx, guildID, channelID); err != nil {
		return View{}, fmt.Errorf("set request channel: %w", err)
	}
	s.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("request channel set")
	return text(fmt.Sprintf("✅ Request channel set to <#%s>", channelID)), nil
}

func (s *GuildService) Status(ctx context.Context, guildID string) (View, error) {
	cfg, err := s.Guilds.GetConfig(ctx, guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return View{}, fmt.Errorf("guild config: %w", err)
	}
	ids, err := s.Guilds.ListEnabledGameIDs(ctx, guildID)
	if err != nil {
		return View{}, fmt.Errorf("enabled games: %w", err)
	}
	games, err := s.Games.GetAnyByIDs(ctx, guildID, ids)
	if err != nil {
		return View{}, fmt.Errorf("resolve enabled games: %w", err)
	}
	mappings, err := s.Guilds.ListMappings(ctx, guildID)
	if err != nil {
		return View{}, fmt.Errorf("role mappings: %w", err)
	}

	nameByID := make(map[string]string, len(games))
	names := make([]string, 0, len(games))
	for _, g := range games {
		nameByID[g.ID] = g.Name
		names = append(names, g.Name)
	}
	sortFold(names)
	if len(names) > statusMaxNames {
		names = names[:statusMaxNames]
	}

	var missing []string
	seen := map[string]bool{}
	for _, m := range mappings {
		if len(missing) == statusMaxMissing {
			break
		}
		exists, err := s.Roles.RoleExists(ctx, guildID, m.RoleID)
		if !bestEffort(s.log, "role lookup", err) || exists {
			continue
		}
		name := nameByID[m.GameID]
		if name == "" {
			if g, err := s.Games.GetAnyByID(ctx, guildID, m.GameID); err == nil {
				name = g.Name
			} else {
				name = m.GameID
			}
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	sortFold(missing)

	lines := []string{
		"**Announce channel:** " + channelOrUnset(cfg.AnnounceChannelID),
		"**Request channel:** " + channelOrUnset(cfg.RequestChannelID),
		fmt.Sprintf("**Enabled games:** %d", len(ids)),
	}
	if len(names) > 0 {
		lines = append(lines, "", "**Some enabled games:** "+strings.Join(names, ", "))
	}
	if len(missing) > 0 {
		lines = append(lines, "**Missing mapped roles:** "+strings.Join(missing, ", "))
	}
	return View{Embeds: []Embed{{Title: "GameShare status", Description: strings.Join(lines, "\n")}}}, nil
}

func channelOrUnset(id string) string {
	if id == "" {
		return "_not set_"
	}
	return "<#" + id + ">"
}

func sortFold(ss []string) {
	sort.SliceStable(ss, func(i, j int) bool { return strings.ToLower(ss[i]) < strings.ToLower(ss[j]) })
}

// OpenConfigure starts a configure-games board filtered by query.
func (s *GuildService) OpenConfigure(ctx context.Context, guildID, query string) (View, error) {
	st := configureBoard{GuildID: guildID, Query: strings.TrimSpace(query)}
	key := s.boards.Put(st)
	return s.renderConfigure(ctx, key, st)
}

// HandleConfigure answers a control on a configure-games board.
func (s *GuildService) HandleConfigure(ctx context.Context, guildID string, cb domain.SessionCallback) (View, error) {
	expired := text(fmt.Sprintf(msgExpiredState, cmdConfigure))
	st, err := s.boards.Get(cb.Key)
	if err != nil || st.GuildID != guildID {
		return expired, nil
	}
	s.boards.Touch(cb.Key)

	switch cb.Action {
	case domain.IntentConfigurePrev, domain.IntentConfigureNext:
		step := 1
		if cb.Action == domain.IntentConfigurePrev {
			step = -1
		}
		st, err = s.boards.Update(cb.Key, func(b configureBoard) configureBoard {
			b.Page += step
			if b.Page < 0 {
				b.Page = 0
			}
			return b
		})
		if err != nil {
			return expired, nil
		}
		return s.renderConfigure(ctx, cb.Key, st)

	case domain.IntentConfigureDone:
		s.boards.Delete(cb.Key)
		return text("Done editing game configuration."), nil

	case domain.IntentConfigureToggle:
		note, err := s.ToggleGame(ctx, st.GuildID, cb.Arg)
		if err != nil {
			return View{}, err
		}
		v, err := s.renderConfigure(ctx, cb.Key, st)
		if err != nil {
			return View{}, err
		}
		if note != "" {
			v.Followups = append(v.Followups, note)
		}
		return v, nil
	}
	return View{}, fmt.Errorf("%w: configure intent %q", domain.ErrBadCallback, cb.Action)
}

// ToggleGame flips gameID for the guild. Enabling also ensures the game's
// role; a failure there is returned as a note, the game stays enabled.
func (s *GuildService) ToggleGame(ctx context.Context, guildID, gameID string) (string, error) {
	game, err := s.Games.GetAnyByID(ctx, guildID, gameID)
	if err != nil {
		return "Game not found.", nil
	}
	enabled, err := s.Guilds.IsGameEnabled(ctx, guildID, gameID)
	if err != nil {
		return "", fmt.Errorf("game enabled: %w", err)
	}
	log := s.log.With().Str("guild", guildID).Str("game", gameID).Logger()

	if enabled {
		if err := s.Guilds.SetGameEnabled(ctx, guildID, gameID, false); err != nil {
			return "", fmt.Errorf("disable game: %w", err)
		}
		log.Info().Msg("game disabled")
		return "", nil
	}
	if err := s.Guilds.SetGameEnabled(ctx, guildID, gameID, true); err != nil {
		return "", fmt.Errorf("enable game: %w", err)
	}
	log.Info().Msg("game enabled")

	roleID, err := s.Roles.EnsureRoleForGame(ctx, guildID, roleName(s.RolePrefix, game.Name))
	if err != nil {
		log.Warn().Err(err).Msg("ensure role failed")
		return fmt.Sprintf("⚠️ Enabled **%s**, but I couldn't create its role: %v", game.Name, err), nil
	}
	if err := s.Guilds.SetRoleID(ctx, guildID, gameID, roleID); err != nil {
		return "", fmt.Errorf("map role: %w", err)
	}
	return "", nil
}

func (s *GuildService) renderConfigure(ctx context.Context, key string, st configureBoard) (View, error) {
	results, err := s.Games.SearchAll(ctx, st.GuildID, st.Query)
	if err != nil {
		return View{}, fmt.Errorf("search games: %w", err)
	}
	ids, err := s.Guilds.ListEnabledGameIDs(ctx, st.GuildID)
	if err != nil {
		return View{}, fmt.Errorf("enabled games: %w", err)
	}
	enabled := make(map[string]bool, len(ids))
	for _, id := range ids {
		enabled[id] = true
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if enabled[a.ID] != enabled[b.ID] {
			return enabled[a.ID]
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	page, start, end := pageBounds(st.Page, configurePageSize, len(results))
	query := st.Query
	if query == "" {
		query = "(none)"
	}
	showing := "Showing 0 of 0"
	if len(results) > 0 {
		showing = fmt.Sprintf("Showing %d-%d of %d", start+1, end, len(results))
	}
	e := Embed{
		Title: "Configure Games",
		Description: strings.Join([]string{
			"Search: `" + query + "`",
			showing,
			"",
			"Use the buttons below to enable or disable games for this server.",
			"Tip: rerun /gameshare admin configure-games with the optional query argument to filter games.",
		}, "\n"),
	}
	if len(results) == 0 {
		e.Fields = []EmbedField{{Name: "No results", Value: "Try a different search term."}}
	}

	var toggles []Button
	for _, g := range results[start:end] {
		label, style := "⬜ ", StyleSecondary
		if enabled[g.ID] {
			label, style = "✅ ", StyleSuccess
		}
		toggles = append(toggles, button(label+truncRunes(g.Name, labelNameMax),
			domain.SessionCallback{Action: domain.IntentConfigureToggle, Key: key, Arg: g.ID}, style))
	}
	maxPage := 0
	if len(results) > 0 {
		maxPage = (len(results) - 1) / configurePageSize
	}
	nav := navRow(key, page, maxPage, domain.IntentConfigurePrev, domain.IntentConfigureNext, domain.IntentConfigureDone)
	return View{Embeds: []Embed{e}, Rows: append(buttonRows(toggles), nav)}, nil
}
