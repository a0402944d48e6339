package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
)

const (
	EmojiAddRole    = "➕"
	EmojiRemoveRole = "➖"
)

const (
	msgNotYourPrompt    = "This prompt isn't for you."
	msgShareExpired     = "That share request expired. Please try again."
	msgNoAnnounce       = "Sharing is unavailable because the server hasn’t configured an announce channel. Ask an admin to run `/gameshare admin set-channel`."
	msgAnnounceMissing  = "Announce channel is missing or not a text channel. Ask an admin to re-set it."
	msgPostFailed       = "I couldn’t post in the announce channel. Ask an admin to check my permissions there."
	msgPosted           = "✅ Posted!"
	announceRoleFooter  = "Want to change your notifications for this game? React ➕ to add the role, or ➖ to remove it."
	fallbackGameName    = "that game"
	shareTimeoutOneDay  = 1
	shareTimeoutOneWeek = 7
)

type ShareDeps struct {
	Ledger   *Ledger
	Pending  *PendingShares
	Games    GameResolver
	Guilds   GuildStore
	Users    UserStore
	Sessions SessionStore
	Messages Messenger
	Roles    RoleManager
	// AutoGrantRole gives the sharer the game role after a post.
	AutoGrantRole bool
}

// ShareService runs the DM negotiation that turns a detected game into at
// most one announcement. Every step after the first DM edits that DM.
type ShareService struct {
	log zerolog.Logger
	ShareDeps
}

func NewShareService(log zerolog.Logger, deps ShareDeps) *ShareService {
	return &ShareService{log: log.With().Str("component", "share").Logger(), ShareDeps: deps}
}

func (s *ShareService) keyLog(k domain.ShareKey) zerolog.Logger {
	return s.log.With().Str("guild", k.GuildID).Str("user", k.UserID).Str("game", k.GameID).Logger()
}

func (s *ShareService) gameName(ctx context.Context, k domain.ShareKey) string {
	g, err := s.Games.GetAnyByID(ctx, k.GuildID, k.GameID)
	if err != nil {
		return fallbackGameName
	}
	return g.Name
}

// release puts the key back to IDLE so a later presence event can prompt again.
func (s *ShareService) release(ctx context.Context, k domain.ShareKey) {
	bestEffort(s.keyLog(k), "release in-flight", s.Ledger.SetInFlight(ctx, k, false))
}

// SendPrompt sends the first DM. The caller owns the in-flight slot and
// must release it when this fails.
func (s *ShareService) SendPrompt(ctx context.Context, k domain.ShareKey, gameName string) error {
	v := promptView(k, gameName)
	if _, err := s.Messages.SendDM(ctx, k.UserID, v); err != nil {
		return fmt.Errorf("send prompt dm: %w", err)
	}
	metrics.PromptsSent.WithLabelValues("share").Inc()
	log := s.keyLog(k)
	log.Info().Msg("sent share prompt")
	return nil
}

// Handle routes a button or select click on a negotiation DM.
func (s *ShareService) Handle(ctx context.Context, userID string, cb domain.ShareCallback, values []string) (View, error) {
	if userID != cb.Key.UserID {
		return text(msgNotYourPrompt), nil
	}
	k := cb.Key
	switch cb.Action {
	case domain.IntentShareAccept:
		return s.Accept(ctx, k)
	case domain.IntentShareDecline:
		return s.Decline(ctx, k)
	case domain.IntentShareTimeoutDay:
		return s.Timeout(ctx, k, shareTimeoutOneDay)
	case domain.IntentShareTimeoutWeek:
		return s.Timeout(ctx, k, shareTimeoutOneWeek)
	case domain.IntentShareIgnore:
		return s.Ignore(ctx, k)
	case domain.IntentSharePick:
		kind := domain.DetailNone
		if len(values) > 0 {
			if parsed, ok := domain.ParseDetailKind(values[0]); ok {
				kind = parsed
			}
		}
		return s.PickDetail(ctx, k, kind)
	case domain.IntentShareRetry:
		return s.Retry(ctx, k, cb.Kind)
	case domain.IntentShareConfirm:
		return s.Confirm(ctx, k)
	case domain.IntentShareCancel:
		return s.Cancel(ctx, k)
	}
	return View{}, fmt.Errorf("%w: share intent %q", domain.ErrBadCallback, cb.Action)
}

// Submit handles the detail modal.
func (s *ShareService) Submit(ctx context.Context, userID string, cb domain.ShareCallback, value string) (View, error) {
	if userID != cb.Key.UserID {
		return text(msgNotYourPrompt), nil
	}
	return s.SubmitDetail(ctx, cb.Key, cb.Kind, value)
}

// Accept moves PROMPTED to DETAIL_PICK.
func (s *ShareService) Accept(ctx context.Context, k domain.ShareKey) (View, error) {
	return detailPickerView(k), nil
}

// Decline ends the flow without posting.
func (s *ShareService) Decline(ctx context.Context, k domain.ShareKey) (View, error) {
	s.Pending.Delete(k)
	s.release(ctx, k)
	return text(fmt.Sprintf("👍 No problem, I won't share **%s** this time.", s.gameName(ctx, k))), nil
}

// Timeout silences prompts for this game for days and ends the flow.
func (s *ShareService) Timeout(ctx context.Context, k domain.ShareKey, days int) (View, error) {
	s.Pending.Delete(k)
	defer s.release(ctx, k)
	if err := s.Ledger.SetTimeoutDays(ctx, k, days); err != nil {
		return View{}, fmt.Errorf("set timeout: %w", err)
	}
	span := "1 day"
	if days == shareTimeoutOneWeek {
		span = "1 week"
	} else if days != shareTimeoutOneDay {
		span = fmt.Sprintf("%d days", days)
	}
	return text(fmt.Sprintf("⏰ Got it. I won't ask about **%s** for %s.", s.gameName(ctx, k), span)), nil
}

// Ignore stops prompts for this game until the user re-selects it in
// /gameshare roles.
func (s *ShareService) Ignore(ctx context.Context, k domain.ShareKey) (View, error) {
	s.Pending.Delete(k)
	defer s.release(ctx, k)
	if err := s.Ledger.Ignore(ctx, k); err != nil {
		return View{}, fmt.Errorf("ignore game: %w", err)
	}
	return text(fmt.Sprintf("🚫 Okay, I won't ask about **%s** again. Pick it in `/gameshare roles` to undo this.", s.gameName(ctx, k))), nil
}

// PickDetail caches the draft for kind. NONE goes straight to the preview;
// the other kinds open the input modal.
func (s *ShareService) PickDetail(ctx context.Context, k domain.ShareKey, kind domain.DetailKind) (View, error) {
	name := s.gameName(ctx, k)
	draft := domain.PendingShare{
		GuildID:    k.GuildID,
		UserID:     k.UserID,
		GameID:     k.GameID,
		GameName:   name,
		DetailKind: kind,
	}
	s.Pending.Put(draft)
	if kind == domain.DetailNone {
		return previewView(draft), nil
	}
	return s.modalView(ctx, k, kind), nil
}

// Retry reopens the modal after a rejected value.
func (s *ShareService) Retry(ctx context.Context, k domain.ShareKey, kind domain.DetailKind) (View, error) {
	if _, err := s.draft(ctx, k); err != nil {
		return text(msgShareExpired), nil
	}
	if kind == "" || kind == domain.DetailNone {
		return detailPickerView(k), nil
	}
	return s.modalView(ctx, k, kind), nil
}

// SubmitDetail validates a modal value. Invalid input keeps the draft
// untouched and offers a retry.
func (s *ShareService) SubmitDetail(ctx context.Context, k domain.ShareKey, kind domain.DetailKind, raw string) (View, error) {
	draft, err := s.draft(ctx, k)
	if err != nil {
		return text(msgShareExpired), nil
	}
	value, err := domain.ValidateDetail(kind, raw)
	if err != nil {
		var de *domain.DetailError
		reason := "Invalid value."
		if errors.As(err, &de) {
			reason = de.Reason
		}
		return View{
			Content: "❌ " + reason,
			Rows: []Row{{Buttons: []Button{
				button("Try again", domain.ShareCallback{Action: domain.IntentShareRetry, Key: k, Kind: kind}, StylePrimary),
				button("Cancel", domain.ShareCallback{Action: domain.IntentShareCancel, Key: k}, StyleSecondary),
			}}},
		}, nil
	}
	draft.DetailKind = kind
	draft.DetailValue = value
	s.Pending.Put(draft)
	return previewView(draft), nil
}

// Cancel discards the draft.
func (s *ShareService) Cancel(ctx context.Context, k domain.ShareKey) (View, error) {
	s.Pending.Delete(k)
	s.release(ctx, k)
	return text("Cancelled. Nothing was posted."), nil
}

// Confirm publishes the draft. Once the draft has been taken the flow always
// ends in IDLE, whether or not the post went out.
func (s *ShareService) Confirm(ctx context.Context, k domain.ShareKey) (View, error) {
	log := s.keyLog(k)
	defer s.release(ctx, k)

	draft, ok := s.Pending.Take(k)
	if !ok {
		return text(msgShareExpired), nil
	}

	channelID, err := s.announceChannel(ctx, k.GuildID)
	switch {
	case errors.Is(err, ErrNoAnnounceChannel):
		return text(msgNoAnnounce), nil
	case errors.Is(err, ErrChannelUnavailable):
		log.Warn().Err(err).Msg("announce channel unavailable")
		return text(msgAnnounceMissing), nil
	case err != nil:
		return View{}, err
	}

	roleID := s.mappedRole(ctx, log, k)

	ref, err := s.Messages.SendChannel(ctx, channelID, announcementView(draft, roleID))
	if err != nil {
		log.Warn().Err(err).Msg("announcement post failed")
		return text(msgPostFailed), nil
	}
	metrics.SharesPosted.Inc()

	if roleID != "" {
		bestEffort(log, "react add", s.Messages.AddReaction(ctx, ref, EmojiAddRole))
		bestEffort(log, "react remove", s.Messages.AddReaction(ctx, ref, EmojiRemoveRole))
	}
	_, err = s.Sessions.Create(ctx, domain.AnnouncementSession{
		MessageID:   ref.MessageID,
		GuildID:     k.GuildID,
		ChannelID:   ref.ChannelID,
		UserID:      k.UserID,
		GameID:      k.GameID,
		RoleID:      roleID,
		DetailKind:  draft.DetailKind,
		DetailValue: draft.DetailValue,
		Active:      true,
	})
	bestEffort(log, "persist session", err)

	if draft.DetailKind != domain.DetailNone {
		bestEffort(log, "remember detail", s.Users.SaveSharedDetail(ctx, k.GuildID, k.UserID, draft.DetailKind, draft.DetailValue))
	}
	if roleID != "" && s.AutoGrantRole {
		s.autoGrant(ctx, log, k, roleID)
	}

	log.Info().Str("message", ref.MessageID).Msg("posted announcement")
	return text(msgPosted), nil
}

// draft returns the pending share for k. A missing draft releases the flow
// and yields ErrShareExpired.
func (s *ShareService) draft(ctx context.Context, k domain.ShareKey) (domain.PendingShare, error) {
	d, ok := s.Pending.Get(k)
	if !ok {
		s.release(ctx, k)
		return d, ErrShareExpired
	}
	return d, nil
}

// announceChannel returns the guild's announce channel, or ErrNoAnnounceChannel
// when none is set and ErrChannelUnavailable when it can no longer be posted to.
func (s *ShareService) announceChannel(ctx context.Context, guildID string) (string, error) {
	cfg, err := s.Guilds.GetConfig(ctx, guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("guild config: %w", err)
	}
	if cfg.AnnounceChannelID == "" {
		return "", ErrNoAnnounceChannel
	}
	if err := s.Messages.ResolveTextChannel(ctx, guildID, cfg.AnnounceChannelID); err != nil {
		if !errors.Is(err, ErrChannelUnavailable) {
			err = fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
		}
		return "", fmt.Errorf("channel %s: %w", cfg.AnnounceChannelID, err)
	}
	return cfg.AnnounceChannelID, nil
}

// mappedRole returns the game's role if it is mapped and still exists.
func (s *ShareService) mappedRole(ctx context.Context, log zerolog.Logger, k domain.ShareKey) string {
	roleID, err := s.Guilds.GetRoleID(ctx, k.GuildID, k.GameID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			bestEffort(log, "role mapping", err)
		}
		return ""
	}
	exists, err := s.Roles.RoleExists(ctx, k.GuildID, roleID)
	if !bestEffort(log, "role lookup", err) || !exists {
		return ""
	}
	return roleID
}

func (s *ShareService) autoGrant(ctx context.Context, log zerolog.Logger, k domain.ShareKey, roleID string) {
	if ok, reason := s.Roles.CanManageRole(ctx, k.GuildID, roleID); !ok {
		log.Debug().Str("reason", reason).Msg("skip auto-grant")
		return
	}
	has, err := s.Roles.MemberHasRole(ctx, k.GuildID, k.UserID, roleID)
	if !bestEffort(log, "member role lookup", err) || has {
		return
	}
	bestEffort(log, "auto-grant role", s.Roles.GrantRole(ctx, k.GuildID, k.UserID, roleID))
}

func (s *ShareService) modalView(ctx context.Context, k domain.ShareKey, kind domain.DetailKind) View {
	prev, err := s.Users.GetSharedDetails(ctx, k.GuildID, k.UserID)
	bestEffort(s.keyLog(k), "load remembered details", err)

	m := &Modal{
		CustomID:  domain.EncodeCallback(domain.ShareCallback{Action: domain.IntentShareModal, Key: k, Kind: kind}),
		Title:     "Share " + kind.Label(),
		Value:     prev.For(kind),
		MaxLength: domain.MaxDetailLen,
	}
	switch kind {
	case domain.DetailSteam:
		m.Label, m.Placeholder = "Steam ID", "e.g., 7656119..."
	case domain.DetailServerName:
		m.Label, m.Placeholder = "Server name", "e.g., Chill Squad NA #2"
	default:
		m.Label, m.Placeholder = "Server address", "e.g., 1.2.3.4:27015"
	}
	return View{Modal: m}
}

func promptView(k domain.ShareKey, gameName string) View {
	cb := func(i domain.Intent) domain.ShareCallback { return domain.ShareCallback{Action: i, Key: k} }
	return View{
		Embeds: []Embed{{
			Title:       "Share your game?",
			Description: fmt.Sprintf("You started playing **%s**.\nWant to share with the server?", gameName),
			Footer:      "You control what gets shared.",
		}},
		Rows: []Row{{Buttons: []Button{
			button("Share", cb(domain.IntentShareAccept), StylePrimary),
			button("Not now", cb(domain.IntentShareDecline), StyleSecondary),
			button("⏰ Timeout: 1 day", cb(domain.IntentShareTimeoutDay), StyleDanger),
			button("⏰ Timeout: 1 week", cb(domain.IntentShareTimeoutWeek), StyleDanger),
			button("Don't ask for this game", cb(domain.IntentShareIgnore), StyleSecondary),
		}}},
	}
}

func detailPickerView(k domain.ShareKey) View {
	return View{
		Embeds: []Embed{{
			Title:       "What detail do you want to share?",
			Description: "Pick one option. You'll see a preview before posting.",
		}},
		Rows: []Row{
			{Select: &Select{
				CustomID:    domain.EncodeCallback(domain.ShareCallback{Action: domain.IntentSharePick, Key: k}),
				Placeholder: "Choose a detail to share",
				Options: []SelectOption{
					{Label: "Share without details", Value: string(domain.DetailNone)},
					{Label: "Steam ID", Value: string(domain.DetailSteam)},
					{Label: "Server Name", Value: string(domain.DetailServerName)},
					{Label: "Server IP (ip:port or hostname:port)", Value: string(domain.DetailServerIP)},
				},
			}},
			{Buttons: []Button{
				button("Cancel", domain.ShareCallback{Action: domain.IntentShareCancel, Key: k}, StyleSecondary),
			}},
		},
	}
}

func previewView(p domain.PendingShare) View {
	detail := "**Detail:** none"
	if p.DetailKind != domain.DetailNone {
		detail = "**Detail:** " + domain.PreviewLine(p.DetailKind, p.DetailValue)
	}
	k := p.Key()
	return View{
		Embeds: []Embed{{
			Title:       "Preview",
			Description: fmt.Sprintf("**Game:** %s\n%s", p.GameName, detail),
			Footer:      "Confirm to post in the server channel.",
		}},
		Rows: []Row{{Buttons: []Button{
			button("Confirm", domain.ShareCallback{Action: domain.IntentShareConfirm, Key: k}, StyleSuccess),
			button("Cancel", domain.ShareCallback{Action: domain.IntentShareCancel, Key: k}, StyleSecondary),
		}}},
	}
}

func announcementView(p domain.PendingShare, roleID string) View {
	lines := []string{fmt.Sprintf("<@%s> is playing **%s**", p.UserID, p.GameName)}
	if line := domain.AnnouncementLine(p.DetailKind, p.DetailValue); line != "" {
		lines = append(lines, line)
	}
	e := Embed{
		Title:       fmt.Sprintf("🎮 **%s**", p.GameName),
		Description: strings.Join(lines, "\n"),
	}
	v := View{Embeds: []Embed{e}}
	if roleID != "" {
		v.Embeds[0].Footer = announceRoleFooter
		v.Content = fmt.Sprintf("<@&%s>", roleID)
		v.MentionRoles = []string{roleID}
	}
	return v
}
