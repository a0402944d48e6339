package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

const (
	msgSlowDown    = "⏳ Slow down a second…"
	msgUnknownCall = "This button is no longer supported."
)

func (r *Router) handleMessageComponent(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger) error {
	data := ic.MessageComponentData()
	uid := userID(ic)
	log = log.With().Str("custom_id", data.CustomID).Logger()

	if !r.clickLimiter.Allow(uid) {
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, log, msgSlowDown)
		return nil
	}

	cb, err := domain.DecodeCallback(data.CustomID)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable callback")
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, log, msgUnknownCall)
		return nil
	}

	// modal openers answer synchronously, a deferred interaction cannot show a modal
	if sc, ok := cb.(domain.ShareCallback); ok && (sc.Action == domain.IntentSharePick || sc.Action == domain.IntentShareRetry) {
		v, err := r.svc.Share.Handle(ctx, uid, sc, data.Values)
		if err != nil {
			_ = DeferEphemeral(s, ic)
			ReplyEphemeral(s, ic, log, msgGenericError)
			return err
		}
		RespondView(s, ic, log, v)
		return nil
	}

	if needsAdmin(cb.Intent()) && !isAdmin(s, ic) {
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, log, msgAdminOnly)
		return nil
	}

	_ = DeferUpdate(s, ic)
	v, err := r.dispatchComponent(ctx, ic, uid, cb, data.Values)
	if err != nil {
		ReplyEphemeral(s, ic, log, msgGenericError)
		return err
	}
	EditView(s, ic, log, v)
	return nil
}

func (r *Router) dispatchComponent(ctx context.Context, ic *discordgo.InteractionCreate, uid string, cb domain.Callback, values []string) (service.View, error) {
	switch c := cb.(type) {
	case domain.ShareCallback:
		return r.svc.Share.Handle(ctx, uid, c, values)
	case domain.UnknownCallback:
		return r.svc.Requests.HandleUnknown(ctx, uid, c)
	case domain.SessionCallback:
		switch {
		case strings.HasPrefix(string(c.Action), "cfg_"):
			return r.svc.Guilds.HandleConfigure(ctx, ic.GuildID, c)
		case strings.HasPrefix(string(c.Action), "req_"):
			return r.svc.Requests.HandleBoard(ctx, ic.GuildID, c)
		default:
			return r.svc.Users.HandleRoles(ctx, ic.GuildID, uid, c)
		}
	}
	return service.View{Content: msgUnknownCall}, nil
}

func needsAdmin(i domain.Intent) bool {
	s := string(i)
	return strings.HasPrefix(s, "cfg_") || strings.HasPrefix(s, "req_")
}

func (r *Router) handleModalSubmit(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger) error {
	data := ic.ModalSubmitData()
	log = log.With().Str("custom_id", data.CustomID).Logger()

	cb, err := domain.DecodeCallback(data.CustomID)
	sc, ok := cb.(domain.ShareCallback)
	if err != nil || !ok {
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, log, msgUnknownCall)
		return nil
	}

	_ = DeferUpdate(s, ic)
	v, err := r.svc.Share.Submit(ctx, userID(ic), sc, modalValue(data))
	if err != nil {
		ReplyEphemeral(s, ic, log, msgGenericError)
		return err
	}
	EditView(s, ic, log, v)
	return nil
}
