package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
)

// Platform implements service.Messenger and service.RoleManager on top of a
// discordgo session. State is consulted first, REST second.
type Platform struct {
	s *discordgo.Session
}

var (
	_ service.Messenger   = (*Platform)(nil)
	_ service.RoleManager = (*Platform)(nil)
)

func NewPlatform(s *discordgo.Session) *Platform { return &Platform{s: s} }

func (p *Platform) botID() string {
	if p.s.State != nil && p.s.State.User != nil {
		return p.s.State.User.ID
	}
	return ""
}

func (p *Platform) SendDM(ctx context.Context, userID string, v service.View) (service.MessageRef, error) {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return service.MessageRef{}, fmt.Errorf("open dm: %w", err)
	}
	m, err := p.s.ChannelMessageSendComplex(ch.ID, toMessageSend(v), discordgo.WithContext(ctx))
	if err != nil {
		if isRESTCode(err, discordgo.ErrCodeCannotSendMessagesToThisUser) {
			return service.MessageRef{}, service.ErrDMClosed
		}
		return service.MessageRef{}, fmt.Errorf("send dm: %w", err)
	}
	return service.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (p *Platform) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := p.s.State.Channel(id); err == nil && ch != nil {
		return ch, nil
	}
	ch, err := p.s.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	_ = p.s.State.ChannelAdd(ch)
	return ch, nil
}

func (p *Platform) ResolveTextChannel(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		return service.ErrChannelUnavailable
	}
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		var re *discordgo.RESTError
		if errors.As(err, &re) {
			return service.ErrChannelUnavailable
		}
		return err
	}
	if ch.GuildID != guildID {
		return service.ErrChannelUnavailable
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return nil
	}
	return service.ErrChannelUnavailable
}

func (p *Platform) CanPost(ctx context.Context, channelID string) (bool, error) {
	perms, err := p.s.UserChannelPermissions(p.botID(), channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	need := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	return perms&need == need, nil
}

func (p *Platform) SendChannel(ctx context.Context, channelID string, v service.View) (service.MessageRef, error) {
	m, err := p.s.ChannelMessageSendComplex(channelID, toMessageSend(v), discordgo.WithContext(ctx))
	if err != nil {
		return service.MessageRef{}, err
	}
	return service.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (p *Platform) EditMessage(ctx context.Context, ref service.MessageRef, v service.View) error {
	_, err := p.s.ChannelMessageEditComplex(toMessageEdit(ref, v), discordgo.WithContext(ctx))
	return err
}

func (p *Platform) AddReaction(ctx context.Context, ref service.MessageRef, emoji string) error {
	return p.s.MessageReactionAdd(ref.ChannelID, ref.MessageID, emoji, discordgo.WithContext(ctx))
}

func (p *Platform) RemoveUserReaction(ctx context.Context, ref service.MessageRef, emoji, userID string) error {
	return p.s.MessageReactionRemove(ref.ChannelID, ref.MessageID, emoji, userID, discordgo.WithContext(ctx))
}

func (p *Platform) RemoveAllReactions(ctx context.Context, ref service.MessageRef) error {
	return p.s.MessageReactionsRemoveAll(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
}

func (p *Platform) roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	if g, err := p.s.State.Guild(guildID); err == nil && g != nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	return p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
}

// EnsureRoleForGame returns the role named name, creating it when no role
// matches case-insensitively.
func (p *Platform) EnsureRoleForGame(ctx context.Context, guildID, name string) (string, error) {
	roles, err := p.roles(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r.ID, nil
		}
	}
	mentionable := true
	r, err := p.s.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Mentionable: &mentionable}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create role %q: %w", name, err)
	}
	return r.ID, nil
}

func (p *Platform) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := p.s.State.Member(guildID, userID); err == nil && m != nil {
		return m, nil
	}
	return p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

func (p *Platform) CanManageRole(ctx context.Context, guildID, roleID string) (bool, string) {
	roles, err := p.roles(ctx, guildID)
	if err != nil {
		return false, "could not read server roles"
	}
	me, err := p.member(ctx, guildID, p.botID())
	if err != nil {
		return false, "could not read my own member"
	}
	return canManage(roles, me.Roles, roleID)
}

// canManage applies the hierarchy rules: Manage Roles (or Administrator),
// target strictly below the bot's highest role, and not integration managed.
func canManage(roles []*discordgo.Role, botRoles []string, roleID string) (bool, string) {
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	target, ok := byID[roleID]
	if !ok {
		return false, "role no longer exists"
	}
	if target.Managed {
		return false, "role is managed by an integration"
	}
	var perms int64
	top := -1
	for _, id := range botRoles {
		r, ok := byID[id]
		if !ok {
			continue
		}
		perms |= r.Permissions
		if r.Position > top {
			top = r.Position
		}
	}
	if perms&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) == 0 {
		return false, "missing Manage Roles permission"
	}
	if target.Position >= top {
		return false, "role is above my highest role"
	}
	return true, ""
}

func (p *Platform) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	if roleID == "" {
		return false, nil
	}
	roles, err := p.roles(ctx, guildID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (p *Platform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	m, err := p.member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	for _, id := range m.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (p *Platform) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (p *Platform) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}
