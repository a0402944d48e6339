package discord

import "github.com/bwmarrin/discordgo"

const (
	permManageGuild int64 = 1 << 5

	msgAdminOnly = "Admin only. You need **Manage Server** or **Administrator**."
)

// isAdmin reports whether the invoking member may run admin surfaces: guild
// owner, Administrator or Manage Server.
func isAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if ic.Member == nil {
		return false
	}
	if ic.Member.Permissions&(discordgo.PermissionAdministrator|permManageGuild) != 0 {
		return true
	}
	if s == nil || s.State == nil || ic.Member.User == nil {
		return false
	}
	g, _ := s.State.Guild(ic.GuildID)
	return g != nil && g.OwnerID == ic.Member.User.ID
}

func (r *Router) requireAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if isAdmin(s, ic) {
		return true
	}
	ReplyEphemeral(s, ic, r.log, msgAdminOnly)
	return false
}
