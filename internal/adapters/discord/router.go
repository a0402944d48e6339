package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
)

// Intents the router's handlers depend on.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildPresences |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages

type Router struct {
	s    *discordgo.Session
	log  zerolog.Logger
	svc  Services
	opts Options

	clickLimiter *userLimiter
}

func NewRouter(s *discordgo.Session, log zerolog.Logger, svc Services, opts Options) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = 12 * time.Second
	}
	return &Router{
		s:            s,
		log:          log.With().Str("component", "discord").Logger(),
		svc:          svc,
		opts:         opts,
		clickLimiter: newUserLimiter(opts.ClickCooldown),
	}
}

// Register overwrites the application commands in one call.
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	_, err := r.s.ApplicationCommandBulkOverwrite(appID, r.opts.GuildID, Commands)
	return err
}

func (r *Router) Handlers() {
	r.s.AddHandler(r.onInteraction)
	r.s.AddHandler(r.onPresence)
	r.s.AddHandler(r.onReactionAdd)
	r.s.AddHandler(r.onReactionRemove)
}

func (r *Router) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	kind := interactionKind(ic.Type)
	if kind == "" {
		return
	}
	log := r.log.With().Str("kind", kind).Str("user", userID(ic)).Str("guild", ic.GuildID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("interaction handler panicked")
			metrics.Interactions.WithLabelValues(kind, "panic").Inc()
			ReplyEphemeral(s, ic, log, msgGenericError)
		}
	}()
	defer step(log, kind)()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()

	var err error
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		err = r.handleSlashCommand(ctx, s, ic, log)
	case discordgo.InteractionMessageComponent:
		err = r.handleMessageComponent(ctx, s, ic, log)
	case discordgo.InteractionModalSubmit:
		err = r.handleModalSubmit(ctx, s, ic, log)
	}
	metrics.Interactions.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("interaction failed")
	}
}

func interactionKind(t discordgo.InteractionType) string {
	switch t {
	case discordgo.InteractionApplicationCommand:
		return "command"
	case discordgo.InteractionMessageComponent:
		return "component"
	case discordgo.InteractionModalSubmit:
		return "modal"
	}
	return ""
}
