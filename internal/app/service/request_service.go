package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/catalog"
	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
	"github.com/stlmattjohnson/gameshare-bot/internal/ux"
)

const requestsPageSize = 5

const (
	msgRequestPending       = "✅ A request for that game is already pending with the admins."
	msgRequestNoChannel     = "✅ Request created, but the server hasn’t set a request channel. Ask an admin to run `/gameshare admin set-request-channel`."
	msgRequestChannelBroken = "✅ Request saved, but the configured request channel is missing or not a text channel."
	msgRequestNotFound      = "Request not found (maybe already handled)."
	cmdAdminRequests        = "`/gameshare admin requests`"
)

type requestsBoard struct {
	GuildID string
	Page    int
}

type RequestDeps struct {
	Ledger   *Ledger
	Games    GameResolver
	Guilds   GuildStore
	Customs  CustomGameStore
	Requests RequestStore
	Messages Messenger
	Roles    RoleManager
	// RolePrefix is prepended to game names for created roles.
	RolePrefix string
	BoardTTL   time.Duration
}

// RequestService owns the unknown/disabled game prompt and the admin
// review board for the requests it produces.
type RequestService struct {
	log zerolog.Logger
	RequestDeps
	boards *ux.Store[requestsBoard]
	// full presence names too long to embed in a button id
	names *ux.Store[string]
}

// how long an unknown prompt with a by-reference name stays answerable
const unknownNameTTL = 24 * time.Hour

const msgUnknownPromptExpired = "This prompt expired. I'll ask again the next time you play it."

func NewRequestService(log zerolog.Logger, deps RequestDeps) *RequestService {
	return &RequestService{
		log:         log.With().Str("component", "requests").Logger(),
		RequestDeps: deps,
		boards:      ux.NewStore[requestsBoard](deps.BoardTTL, nil),
		names:       ux.NewStore[string](unknownNameTTL, nil),
	}
}

// SendUnknownPrompt asks the user whether to request the game. disabled
// is true when the name matched a catalog game the guild has not enabled.
func (s *RequestService) SendUnknownPrompt(ctx context.Context, guildID, userID, presenceName string, disabled bool) error {
	if err := s.Ledger.MarkUnknownPrompted(ctx, guildID, userID, presenceName); err != nil {
		return fmt.Errorf("mark unknown prompted: %w", err)
	}
	ref := domain.UnknownCallback{GuildID: guildID, PresenceName: presenceName}
	if !ref.FitsInline() {
		ref.NameKey = s.names.Put(presenceName)
	}
	if _, err := s.Messages.SendDM(ctx, userID, unknownPromptView(ref, disabled)); err != nil {
		return fmt.Errorf("send unknown prompt dm: %w", err)
	}
	metrics.PromptsSent.WithLabelValues("unknown").Inc()
	s.log.Info().Str("guild", guildID).Str("user", userID).Str("presence", presenceName).
		Bool("disabled", disabled).Msg("sent unknown game prompt")
	return nil
}

// HandleUnknown answers a button on the unknown/disabled prompt.
func (s *RequestService) HandleUnknown(ctx context.Context, userID string, cb domain.UnknownCallback) (View, error) {
	if cb.NameKey != "" {
		name, err := s.names.Get(cb.NameKey)
		if err != nil {
			return text(msgUnknownPromptExpired), nil
		}
		cb.PresenceName = name
	}
	switch cb.Action {
	case domain.IntentUnknownRequest:
		return s.RequestAdd(ctx, cb.GuildID, userID, cb.PresenceName)
	case domain.IntentUnknownNotNow:
		return text(fmt.Sprintf("No problem! I won't ask to enable **%s** this time.", cb.PresenceName)), nil
	case domain.IntentUnknownIgnore:
		if err := s.Ledger.IgnoreUnknown(ctx, cb.GuildID, userID, cb.PresenceName); err != nil {
			return View{}, fmt.Errorf("ignore unknown: %w", err)
		}
		return text(fmt.Sprintf("Okay, I won't prompt you about **%s** in this server.", cb.PresenceName)), nil
	}
	return View{}, fmt.Errorf("%w: unknown-game intent %q", domain.ErrBadCallback, cb.Action)
}

// RequestAdd records a pending request unless one already exists for the
// same name and tells the admins about it.
func (s *RequestService) RequestAdd(ctx context.Context, guildID, userID, presenceName string) (View, error) {
	log := s.log.With().Str("guild", guildID).Str("user", userID).Str("presence", presenceName).Logger()

	req, created, err := s.Requests.CreatePending(ctx, guildID, userID, presenceName)
	if err != nil {
		return View{}, fmt.Errorf("create request: %w", err)
	}
	if !created {
		return text(msgRequestPending), nil
	}
	log.Info().Int64("request", req.ID).Msg("created game add request")

	cfg, err := s.Guilds.GetConfig(ctx, guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		bestEffort(log, "guild config", err)
	}
	if cfg.RequestChannelID == "" {
		return text(msgRequestNoChannel), nil
	}
	if err := s.Messages.ResolveTextChannel(ctx, guildID, cfg.RequestChannelID); err != nil {
		log.Warn().Err(err).Str("channel", cfg.RequestChannelID).Msg("request channel unavailable")
		return text(msgRequestChannelBroken), nil
	}
	if _, err := s.Messages.SendChannel(ctx, cfg.RequestChannelID, requestPostView(req)); err != nil {
		log.Warn().Err(err).Msg("request post failed")
		return text(msgRequestChannelBroken), nil
	}
	return text(fmt.Sprintf("✅ Sent **%s** to admins for review in this server.", presenceName)), nil
}

// OpenBoard starts a requests board for guildID.
func (s *RequestService) OpenBoard(ctx context.Context, guildID string) (View, error) {
	key := s.boards.Put(requestsBoard{GuildID: guildID})
	st, _ := s.boards.Get(key)
	return s.renderBoard(ctx, key, st)
}

// HandleBoard answers a control on a requests board. The guild of the
// interaction must match the board's guild.
func (s *RequestService) HandleBoard(ctx context.Context, guildID string, cb domain.SessionCallback) (View, error) {
	expired := text(fmt.Sprintf(msgExpiredState, cmdAdminRequests))
	st, err := s.boards.Get(cb.Key)
	if err != nil || st.GuildID != guildID {
		return expired, nil
	}
	s.boards.Touch(cb.Key)

	switch cb.Action {
	case domain.IntentRequestsPrev, domain.IntentRequestsNext:
		step := 1
		if cb.Action == domain.IntentRequestsPrev {
			step = -1
		}
		st, err = s.boards.Update(cb.Key, func(b requestsBoard) requestsBoard {
			b.Page += step
			if b.Page < 0 {
				b.Page = 0
			}
			return b
		})
		if err != nil {
			return expired, nil
		}
		return s.renderBoard(ctx, cb.Key, st)

	case domain.IntentRequestsDone:
		s.boards.Delete(cb.Key)
		return text("✅ Done."), nil

	case domain.IntentRequestsApprove, domain.IntentRequestsReject:
		id, err := strconv.ParseInt(cb.Arg, 10, 64)
		if err != nil {
			return View{}, fmt.Errorf("%w: request id %q", domain.ErrBadCallback, cb.Arg)
		}
		var res Outcome
		if cb.Action == domain.IntentRequestsApprove {
			res, err = s.Approve(ctx, st.GuildID, id)
		} else {
			res, err = s.Reject(ctx, st.GuildID, id)
		}
		if err != nil {
			return View{}, err
		}
		v, err := s.renderBoard(ctx, cb.Key, st)
		if err != nil {
			return View{}, err
		}
		msg := res.Message
		if !res.Ok {
			msg = "⚠️ " + msg
		}
		v.Followups = append(v.Followups, msg)
		return v, nil
	}
	return View{}, fmt.Errorf("%w: requests intent %q", domain.ErrBadCallback, cb.Action)
}

// Outcome is the admin-facing result of a review action.
type Outcome struct {
	Ok      bool
	Message string
}

// Approve adds or enables the requested game, maps a role for it and closes
// the request. The requester is added to the role when possible.
func (s *RequestService) Approve(ctx context.Context, guildID string, id int64) (Outcome, error) {
	log := s.log.With().Str("guild", guildID).Int64("request", id).Logger()

	req, err := s.pendingRequest(ctx, guildID, id)
	if errors.Is(err, ErrRequestNotFound) {
		return Outcome{Message: msgRequestNotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	game, err := s.gameForRequest(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.Guilds.SetGameEnabled(ctx, guildID, game.ID, true); err != nil {
		return Outcome{}, fmt.Errorf("enable game: %w", err)
	}

	roleID, err := s.Roles.EnsureRoleForGame(ctx, guildID, roleName(s.RolePrefix, game.Name))
	if err != nil {
		log.Warn().Err(err).Msg("ensure role failed")
		return Outcome{Message: fmt.Sprintf("Enabled **%s**, but I couldn't create its role: %v. The request is still pending.", game.Name, err)}, nil
	}
	if err := s.Guilds.SetRoleID(ctx, guildID, game.ID, roleID); err != nil {
		return Outcome{}, fmt.Errorf("map role: %w", err)
	}
	if _, err := s.Requests.Resolve(ctx, guildID, id, domain.RequestApproved); err != nil {
		return Outcome{}, fmt.Errorf("resolve request: %w", err)
	}
	log.Info().Str("game", game.ID).Str("role", roleID).Msg("approved game add request")

	line := fmt.Sprintf("✅ Added requester <@%s> to the role.", req.UserID)
	if reason := s.addRequester(ctx, guildID, req.UserID, roleID); reason != "" {
		line = fmt.Sprintf("⚠️ Could not add requester <@%s> to the role: %s", req.UserID, reason)
	}
	return Outcome{
		Ok:      true,
		Message: fmt.Sprintf("✅ Approved. Added **%s** and enabled it for this server.\n%s", game.Name, line),
	}, nil
}

// pendingRequest fails with ErrRequestNotFound once the request is resolved or gone.
func (s *RequestService) pendingRequest(ctx context.Context, guildID string, id int64) (domain.GameAddRequest, error) {
	req, err := s.Requests.GetPending(ctx, guildID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return req, fmt.Errorf("%w: #%d", ErrRequestNotFound, id)
	}
	if err != nil {
		return req, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// gameForRequest prefers a catalog match so approving a disabled catalog
// game enables it rather than shadowing it with a custom copy.
func (s *RequestService) gameForRequest(ctx context.Context, req domain.GameAddRequest) (domain.Game, error) {
	g, err := s.Games.ResolveByPresenceText(ctx, req.GuildID, req.PresenceName)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return domain.Game{}, fmt.Errorf("resolve game: %w", err)
	}
	cg, err := s.Customs.FindByName(ctx, req.GuildID, req.PresenceName)
	if err == nil {
		return cg.Game(), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Game{}, fmt.Errorf("find custom game: %w", err)
	}
	cg, err = s.Customs.Create(ctx, domain.CustomGame{
		GuildID:      req.GuildID,
		ID:           newCustomGameID(),
		Name:         req.PresenceName,
		PresenceName: req.PresenceName,
	})
	if err != nil {
		return domain.Game{}, fmt.Errorf("create custom game: %w", err)
	}
	return cg.Game(), nil
}

// addRequester returns "" on success or the reason it could not.
func (s *RequestService) addRequester(ctx context.Context, guildID, userID, roleID string) string {
	if ok, reason := s.Roles.CanManageRole(ctx, guildID, roleID); !ok {
		if reason == "" {
			reason = "Bot cannot manage the role (check role hierarchy)."
		}
		return reason
	}
	has, err := s.Roles.MemberHasRole(ctx, guildID, userID, roleID)
	if err != nil {
		return "Requester not found in guild (maybe they left)."
	}
	if has {
		return ""
	}
	if err := s.Roles.GrantRole(ctx, guildID, userID, roleID); err != nil {
		return err.Error()
	}
	return ""
}

func (s *RequestService) Reject(ctx context.Context, guildID string, id int64) (Outcome, error) {
	ok, err := s.Requests.Resolve(ctx, guildID, id, domain.RequestRejected)
	if err != nil {
		return Outcome{}, fmt.Errorf("reject request: %w", err)
	}
	if !ok {
		return Outcome{Message: msgRequestNotFound}, nil
	}
	s.log.Info().Str("guild", guildID).Int64("request", id).Msg("rejected game add request")
	return Outcome{Ok: true, Message: fmt.Sprintf("Rejected request #%d.", id)}, nil
}

func (s *RequestService) renderBoard(ctx context.Context, key string, st requestsBoard) (View, error) {
	all, err := s.Requests.ListPending(ctx, st.GuildID)
	if err != nil {
		return View{}, fmt.Errorf("list requests: %w", err)
	}
	page, start, end := pageBounds(st.Page, requestsPageSize, len(all))
	items := all[start:end]

	e := Embed{Title: "Pending Game Add Requests", Description: "No pending requests."}
	if len(all) > 0 {
		e.Description = fmt.Sprintf("Showing %d-%d of %d", start+1, end, len(all))
	}
	var decisions []Button
	for _, r := range items {
		e.Fields = append(e.Fields, EmbedField{
			Name:  fmt.Sprintf("#%d — %s", r.ID, r.PresenceName),
			Value: fmt.Sprintf("Requested by <@%s>\nCreated: <t:%d:R>", r.UserID, r.CreatedAt.Unix()),
		})
		arg := strconv.FormatInt(r.ID, 10)
		name := truncRunes(r.PresenceName, labelNameMax)
		decisions = append(decisions,
			button("Approve: "+name, domain.SessionCallback{Action: domain.IntentRequestsApprove, Key: key, Arg: arg}, StyleSuccess),
			button("Reject: "+name, domain.SessionCallback{Action: domain.IntentRequestsReject, Key: key, Arg: arg}, StyleDanger),
		)
	}

	maxPage := 0
	if len(all) > 0 {
		maxPage = (len(all) - 1) / requestsPageSize
	}
	nav := navRow(key, page, maxPage, domain.IntentRequestsPrev, domain.IntentRequestsNext, domain.IntentRequestsDone)
	return View{Embeds: []Embed{e}, Rows: append(buttonRows(decisions), nav)}, nil
}

func navRow(key string, page, maxPage int, prev, next, done domain.Intent) Row {
	p := button("Prev", domain.SessionCallback{Action: prev, Key: key}, StyleSecondary)
	p.Disabled = page <= 0
	n := button("Next", domain.SessionCallback{Action: next, Key: key}, StyleSecondary)
	n.Disabled = page >= maxPage
	return Row{Buttons: []Button{p, n, button("Done", domain.SessionCallback{Action: done, Key: key}, StylePrimary)}}
}

// unknownPromptView renders the prompt for ref; its Action is set per button.
func unknownPromptView(ref domain.UnknownCallback, disabled bool) View {
	presenceName := ref.PresenceName
	e := Embed{
		Title:       "Game not recognized",
		Description: fmt.Sprintf("You started playing **%s**, but it isn't in this server's game list.\nWant to ask the admins to add it?", presenceName),
	}
	if disabled {
		e.Title = "Game not enabled"
		e.Description = fmt.Sprintf("You started playing **%s**, but this server hasn't enabled it for sharing.\nWant to ask the admins to enable it?", presenceName)
	}
	cb := func(i domain.Intent) domain.UnknownCallback {
		c := ref
		c.Action = i
		return c
	}
	return View{
		Embeds: []Embed{e},
		Rows: []Row{{Buttons: []Button{
			button("Request Add/Enable", cb(domain.IntentUnknownRequest), StylePrimary),
			button("Not now", cb(domain.IntentUnknownNotNow), StyleSecondary),
			button("Ignore", cb(domain.IntentUnknownIgnore), StyleDanger),
		}}},
	}
}

func requestPostView(r domain.GameAddRequest) View {
	return View{Embeds: []Embed{{
		Title:       "🆕 Gameshare Add/Enable Request",
		Description: fmt.Sprintf("**Game name:** %s\n**Requested by:** <@%s>", r.PresenceName, r.UserID),
		Footer:      "Admins: approve/reject in `/gameshare admin requests`.",
	}}}
}

// newCustomGameID returns "cg_" plus ten hex characters.
func newCustomGameID() string {
	return "cg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// platform limit for role names
const roleNameMax = 100

func roleName(prefix, game string) string {
	return truncRunes(prefix+game, roleNameMax)
}
