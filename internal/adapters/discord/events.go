package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
)

// State has already applied the update when handlers run, so the previous
// activity is not available here. OldName stays empty and the presence
// service tracks the last name itself.
func (r *Router) onPresence(s *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.User.ID == r.botID() || p.GuildID == "" {
		return
	}
	ev := service.PresenceEvent{GuildID: p.GuildID, UserID: p.User.ID, NewName: playingName(p.Activities)}
	r.runEvent("presence", func(ctx context.Context) error { return r.svc.Presence.Handle(ctx, ev) })
}

func (r *Router) onReactionAdd(s *discordgo.Session, m *discordgo.MessageReactionAdd) {
	if m.MessageReaction == nil || m.UserID == r.botID() || m.GuildID == "" {
		return
	}
	ev := reactionEvent(m.MessageReaction)
	r.runEvent("reaction_add", func(ctx context.Context) error { return r.svc.Reactions.OnAdd(ctx, ev) })
}

func (r *Router) onReactionRemove(s *discordgo.Session, m *discordgo.MessageReactionRemove) {
	if m.MessageReaction == nil || m.UserID == r.botID() || m.GuildID == "" {
		return
	}
	ev := reactionEvent(m.MessageReaction)
	r.runEvent("reaction_remove", func(ctx context.Context) error { return r.svc.Reactions.OnRemove(ctx, ev) })
}

func reactionEvent(m *discordgo.MessageReaction) service.ReactionEvent {
	return service.ReactionEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.MessageID,
		UserID:    m.UserID,
		Emoji:     m.Emoji.Name,
	}
}

func (r *Router) runEvent(kind string, fn func(ctx context.Context) error) {
	log := r.log.With().Str("event", kind).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("event handler panicked")
			metrics.Interactions.WithLabelValues(kind, "panic").Inc()
		}
	}()
	defer step(log, kind)()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	err := fn(ctx)
	metrics.Interactions.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("event failed")
	}
}

func (r *Router) botID() string {
	if r.s != nil && r.s.State != nil && r.s.State.User != nil {
		return r.s.State.User.ID
	}
	return ""
}
