package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
)

const msgGuildOnly = "This command only works inside a server."

func (r *Router) handleSlashCommand(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger) error {
	cmd := ic.ApplicationCommandData()
	sub, opts := subcmdPath(ic)
	log = log.With().Str("cmd", cmd.Name+" "+sub).Logger()
	log.Info().Msg("slash")

	_ = DeferEphemeral(s, ic)

	if cmd.Name != commandName {
		return nil
	}
	if ic.GuildID == "" {
		ReplyEphemeral(s, ic, log, msgGuildOnly)
		return nil
	}
	guildID, uid := ic.GuildID, userID(ic)

	var (
		v   service.View
		err error
	)
	switch sub {
	case "opt-in":
		v, err = r.svc.Users.OptIn(ctx, guildID, uid)
	case "opt-out":
		v, err = r.svc.Users.OptOut(ctx, guildID, uid)
	case "roles":
		v, err = r.svc.Users.OpenRoles(ctx, guildID, uid)
	case "privacy":
		v = r.svc.Users.Privacy()
	case "sessions":
		v, err = r.svc.Sessions.List(ctx, guildID, guildName(s, guildID))
	case "delete-my-data":
		v, err = r.svc.Users.DeleteMyData(ctx, guildID, uid)
	case "cancel-timeouts":
		v, err = r.svc.Users.CancelTimeouts(ctx, guildID, uid)

	case "admin set-channel", "admin set-request-channel", "admin status", "admin configure-games", "admin requests":
		if !r.requireAdmin(s, ic) {
			return nil
		}
		v, err = r.adminCommand(ctx, guildID, sub, opts)

	default:
		ReplyEphemeral(s, ic, log, fmt.Sprintf("Unknown subcommand. Try `/%s roles`.", commandName))
		return nil
	}
	if err != nil {
		ReplyEphemeral(s, ic, log, msgGenericError)
		return err
	}
	ReplyView(s, ic, log, v)
	return nil
}

func (r *Router) adminCommand(ctx context.Context, guildID, sub string, opts []*discordgo.ApplicationCommandInteractionDataOption) (service.View, error) {
	switch sub {
	case "admin set-channel":
		ch, _ := optStr(opts, "channel")
		return r.svc.Guilds.SetAnnounceChannel(ctx, guildID, ch)
	case "admin set-request-channel":
		ch, _ := optStr(opts, "channel")
		return r.svc.Guilds.SetRequestChannel(ctx, guildID, ch)
	case "admin status":
		return r.svc.Guilds.Status(ctx, guildID)
	case "admin configure-games":
		q, _ := optStr(opts, "query")
		return r.svc.Guilds.OpenConfigure(ctx, guildID, q)
	default:
		return r.svc.Requests.OpenBoard(ctx, guildID)
	}
}
