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

const rolesPageSize = 20

const (
	msgOptedIn  = "✅ You’re opted in.\n\nI’ll watch your Discord **Playing** presence in this server and DM you when you start an enabled game. Nothing is posted unless you confirm."
	msgOptedOut = "✅ You’re opted out. I won’t DM you or monitor your presence."
	msgPrivacy  = "Privacy:\n" +
		"- Opt-in required per server.\n" +
		"- The bot checks your Discord **Playing** presence only after opt-in.\n" +
		"- If you choose to share, it posts only what you confirm.\n" +
		"- Optional details are limited to Steam ID / server name / server address.\n" +
		"- You can remove all stored data with `/gameshare delete-my-data`."
	msgDataDeleted     = "✅ Deleted your saved data for this server."
	msgTimeoutsCleared = "Cleared any active game prompt timeouts. You'll start receiving prompts again."
	msgOptInFirst      = "You must `/gameshare opt-in` first."
	cmdRoles           = "`/gameshare roles`"
)

type rolesBoard struct {
	GuildID string
	UserID  string
	Page    int
}

type UserDeps struct {
	Ledger  *Ledger
	Pending *PendingShares
	Games   GameResolver
	Guilds  GuildStore
	Users   UserStore
	Roles   RoleManager
	// BoardTTL bounds how long a roles board stays usable.
	BoardTTL time.Duration
}

// UserService holds the self-service commands: opt-in state, role picks,
// and data removal.
type UserService struct {
	log zerolog.Logger
	UserDeps
	boards *ux.Store[rolesBoard]
}

func NewUserService(log zerolog.Logger, deps UserDeps) *UserService {
	return &UserService{
		log:      log.With().Str("component", "user").Logger(),
		UserDeps: deps,
		boards:   ux.NewStore[rolesBoard](deps.BoardTTL, nil),
	}
}

func (s *UserService) OptIn(ctx context.Context, guildID, userID string) (View, error) {
	if err := s.Users.SetOptIn(ctx, guildID, userID, true); err != nil {
		return View{}, fmt.Errorf("opt in: %w", err)
	}
	return text(msgOptedIn), nil
}

func (s *UserService) OptOut(ctx context.Context, guildID, userID string) (View, error) {
	if err := s.Users.SetOptIn(ctx, guildID, userID, false); err != nil {
		return View{}, fmt.Errorf("opt out: %w", err)
	}
	return text(msgOptedOut), nil
}

func (s *UserService) Privacy() View { return text(msgPrivacy) }

// DeleteMyData erases every per-user row for (guild,user). Cached drafts
// are dropped too so a stale confirm cannot post afterwards.
func (s *UserService) DeleteMyData(ctx context.Context, guildID, userID string) (View, error) {
	if err := s.Users.EraseUser(ctx, guildID, userID); err != nil {
		return View{}, fmt.Errorf("erase user: %w", err)
	}
	s.Pending.DeleteUser(guildID, userID)
	s.log.Info().Str("guild", guildID).Str("user", userID).Msg("erased user data")
	return text(msgDataDeleted), nil
}

// CancelTimeouts clears prompt timeouts and releases stuck negotiations.
func (s *UserService) CancelTimeouts(ctx context.Context, guildID, userID string) (View, error) {
	cleared, err := s.Ledger.ClearTimeouts(ctx, guildID, userID)
	if err != nil {
		return View{}, fmt.Errorf("clear timeouts: %w", err)
	}
	reset, err := s.Ledger.ResetInFlight(ctx, guildID, userID)
	if err != nil {
		return View{}, fmt.Errorf("reset in-flight: %w", err)
	}
	s.log.Info().Str("guild", guildID).Str("user", userID).
		Int64("timeouts", cleared).Int64("in_flight", reset).Msg("cleared timeouts")
	return text(msgTimeoutsCleared), nil
}

// OpenRoles starts a roles board for the caller. Opt-in is required.
func (s *UserService) OpenRoles(ctx context.Context, guildID, userID string) (View, error) {
	opted, err := s.Users.IsOptedIn(ctx, guildID, userID)
	if err != nil {
		return View{}, fmt.Errorf("opt-in lookup: %w", err)
	}
	if !opted {
		return text(msgOptInFirst), nil
	}
	st := rolesBoard{GuildID: guildID, UserID: userID}
	key := s.boards.Put(st)
	return s.renderRoles(ctx, key, st)
}

// HandleRoles answers a control on a roles board. Only the board's owner
// may use it.
func (s *UserService) HandleRoles(ctx context.Context, guildID, userID string, cb domain.SessionCallback) (View, error) {
	expired := text(fmt.Sprintf(msgExpiredState, cmdRoles))
	st, err := s.boards.Get(cb.Key)
	if err != nil || st.GuildID != guildID || st.UserID != userID {
		return expired, nil
	}
	s.boards.Touch(cb.Key)

	var note string
	switch cb.Action {
	case domain.IntentRolesPrev, domain.IntentRolesNext:
		step := 1
		if cb.Action == domain.IntentRolesPrev {
			step = -1
		}
		st, err = s.boards.Update(cb.Key, func(b rolesBoard) rolesBoard {
			b.Page += step
			if b.Page < 0 {
				b.Page = 0
			}
			return b
		})
		if err != nil {
			return expired, nil
		}
	case domain.IntentRolesClear:
		if err := s.clearRoles(ctx, st.GuildID, st.UserID); err != nil {
			return View{}, err
		}
	case domain.IntentRolesToggle:
		if note, err = s.toggleRole(ctx, st.GuildID, st.UserID, cb.Arg); err != nil {
			return View{}, err
		}
	default:
		return View{}, fmt.Errorf("%w: roles intent %q", domain.ErrBadCallback, cb.Action)
	}
	v, err := s.renderRoles(ctx, cb.Key, st)
	if err == nil && note != "" {
		v.Followups = append(v.Followups, note)
	}
	return v, err
}

// toggleRole flips the user's pick for gameID, syncs the role where the bot
// can, and clears an ignore flag so prompts resume.
func (s *UserService) toggleRole(ctx context.Context, guildID, userID, gameID string) (string, error) {
	enabled, err := s.Guilds.IsGameEnabled(ctx, guildID, gameID)
	if err != nil {
		return "", fmt.Errorf("game enabled: %w", err)
	}
	if !enabled {
		return "That game is not enabled.", nil
	}
	selected, err := s.Users.ListSelectedGameIDs(ctx, guildID, userID)
	if err != nil {
		return "", fmt.Errorf("selected games: %w", err)
	}
	wants := !contains(selected, gameID)
	if err := s.Users.SetGameSelected(ctx, guildID, userID, gameID, wants); err != nil {
		return "", fmt.Errorf("select game: %w", err)
	}
	k := domain.ShareKey{GuildID: guildID, UserID: userID, GameID: gameID}
	bestEffort(s.log, "clear ignore", s.Ledger.ClearIgnore(ctx, k))

	log := s.log.With().Str("guild", guildID).Str("user", userID).Str("game", gameID).Logger()
	roleID := s.manageableRole(ctx, log, guildID, gameID)
	if roleID == "" {
		return "", nil
	}
	has, err := s.Roles.MemberHasRole(ctx, guildID, userID, roleID)
	if !bestEffort(log, "member role lookup", err) {
		return "", nil
	}
	switch {
	case wants && !has:
		bestEffort(log, "grant role", s.Roles.GrantRole(ctx, guildID, userID, roleID))
	case !wants && has:
		bestEffort(log, "revoke role", s.Roles.RevokeRole(ctx, guildID, userID, roleID))
	}
	return "", nil
}

func (s *UserService) clearRoles(ctx context.Context, guildID, userID string) error {
	if err := s.Users.ClearSelectedGames(ctx, guildID, userID); err != nil {
		return fmt.Errorf("clear selections: %w", err)
	}
	ids, err := s.Guilds.ListEnabledGameIDs(ctx, guildID)
	if err != nil {
		return fmt.Errorf("enabled games: %w", err)
	}
	log := s.log.With().Str("guild", guildID).Str("user", userID).Logger()
	for _, id := range ids {
		roleID := s.manageableRole(ctx, log, guildID, id)
		if roleID == "" {
			continue
		}
		has, err := s.Roles.MemberHasRole(ctx, guildID, userID, roleID)
		if bestEffort(log, "member role lookup", err) && has {
			bestEffort(log, "revoke role", s.Roles.RevokeRole(ctx, guildID, userID, roleID))
		}
	}
	return nil
}

// manageableRole returns the mapped role for gameID when it exists and the
// bot can manage it, else "".
func (s *UserService) manageableRole(ctx context.Context, log zerolog.Logger, guildID, gameID string) string {
	roleID, err := s.Guilds.GetRoleID(ctx, guildID, gameID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			bestEffort(log, "role mapping", err)
		}
		return ""
	}
	exists, err := s.Roles.RoleExists(ctx, guildID, roleID)
	if !bestEffort(log, "role lookup", err) || !exists {
		return ""
	}
	if ok, _ := s.Roles.CanManageRole(ctx, guildID, roleID); !ok {
		return ""
	}
	return roleID
}

func (s *UserService) renderRoles(ctx context.Context, key string, st rolesBoard) (View, error) {
	ids, err := s.Guilds.ListEnabledGameIDs(ctx, st.GuildID)
	if err != nil {
		return View{}, fmt.Errorf("enabled games: %w", err)
	}
	games, err := s.Games.GetAnyByIDs(ctx, st.GuildID, ids)
	if err != nil {
		return View{}, fmt.Errorf("resolve games: %w", err)
	}
	ignoredIDs, err := s.Ledger.IgnoredGameIDs(ctx, st.GuildID, st.UserID)
	if err != nil {
		return View{}, fmt.Errorf("ignored games: %w", err)
	}
	selectedIDs, err := s.Users.ListSelectedGameIDs(ctx, st.GuildID, st.UserID)
	if err != nil {
		return View{}, fmt.Errorf("selected games: %w", err)
	}
	ignored, selected := set(ignoredIDs), set(selectedIDs)

	// ignored games sink to the end
	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		if ignored[a.ID] != ignored[b.ID] {
			return !ignored[a.ID]
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	page, start, end := pageBounds(st.Page, rolesPageSize, len(games))
	showing := "Showing 0 of 0"
	if len(games) > 0 {
		showing = fmt.Sprintf("Showing %d-%d", start+1, end)
	}
	e := Embed{
		Title: "Your Game Roles",
		Description: strings.Join([]string{
			fmt.Sprintf("Enabled games: **%d**", len(games)),
			showing,
			"",
			"Use the buttons below to select which game roles you want.",
			"✅ means you currently have that role; changes apply immediately.",
			"❌ means you've chosen to ignore prompts for that game.",
		}, "\n"),
	}
	if len(games) == 0 {
		e.Fields = []EmbedField{{Name: "No enabled games", Value: "Ask an admin to enable games in `/gameshare admin configure-games`."}}
	}

	var toggles []Button
	for _, g := range games[start:end] {
		label, style := "⬜ ", StyleSecondary
		switch {
		case ignored[g.ID]:
			label, style = "❌ ", StyleDanger
		case selected[g.ID]:
			label, style = "✅ ", StyleSuccess
		}
		toggles = append(toggles, button(label+truncRunes(g.Name, labelNameMax),
			domain.SessionCallback{Action: domain.IntentRolesToggle, Key: key, Arg: g.ID}, style))
	}

	maxPage := 0
	if len(games) > 0 {
		maxPage = (len(games) - 1) / rolesPageSize
	}
	prev := button("Prev", domain.SessionCallback{Action: domain.IntentRolesPrev, Key: key}, StyleSecondary)
	prev.Disabled = page <= 0
	next := button("Next", domain.SessionCallback{Action: domain.IntentRolesNext, Key: key}, StyleSecondary)
	next.Disabled = page >= maxPage
	nav := Row{Buttons: []Button{prev, next}}
	if len(games) > 0 {
		nav.Buttons = append(nav.Buttons, button("Clear all my game roles",
			domain.SessionCallback{Action: domain.IntentRolesClear, Key: key}, StyleDanger))
	}
	return View{Embeds: []Embed{e}, Rows: append(buttonRows(toggles), nav)}, nil
}

func set(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
