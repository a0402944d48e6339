package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// subcmdPath returns "sub" or "group sub" and the innermost options.
func subcmdPath(ic *discordgo.InteractionCreate) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", nil
	}
	opts := ic.ApplicationCommandData().Options
	var parts []string
	for len(opts) == 1 && (opts[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup ||
		opts[0].Type == discordgo.ApplicationCommandOptionSubCommand) {
		parts = append(parts, opts[0].Name)
		opts = opts[0].Options
	}
	return strings.Join(parts, " "), opts
}

func optStr(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, o := range opts {
		if o.Name == name {
			if v, ok := o.Value.(string); ok {
				return v, true
			}
			return "", false
		}
	}
	return "", false
}

// userID is the invoker in guilds and in DMs.
func userID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

// playingName picks the activity treated as "playing": the first game
// activity, else the first named non-custom activity.
func playingName(acts []*discordgo.Activity) string {
	for _, a := range acts {
		if a != nil && a.Type == discordgo.ActivityTypeGame && strings.TrimSpace(a.Name) != "" {
			return a.Name
		}
	}
	for _, a := range acts {
		if a != nil && a.Type != discordgo.ActivityTypeCustom && strings.TrimSpace(a.Name) != "" {
			return a.Name
		}
	}
	return ""
}

// modalValue reads the first text input of a submitted modal.
func modalValue(data discordgo.ModalSubmitInteractionData) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok {
				return ti.Value
			}
		}
	}
	return ""
}

func guildName(s *discordgo.Session, guildID string) string {
	if s == nil || s.State == nil {
		return ""
	}
	if g, err := s.State.Guild(guildID); err == nil && g != nil {
		return g.Name
	}
	return ""
}
