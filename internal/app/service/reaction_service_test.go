package service

import (
	"context"
	"testing"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

func (h *harness) session(t *testing.T, roleID string, active bool) domain.AnnouncementSession {
	t.Helper()
	s, err := h.sessDB.Create(context.Background(), domain.AnnouncementSession{
		GuildID: tGuild, UserID: tUser, GameID: "g1", ChannelID: tAnnounce,
		MessageID: "announce-1", RoleID: roleID, Active: active,
	})
	must(t, err)
	return s
}

func react(emoji, user string) ReactionEvent {
	return ReactionEvent{GuildID: tGuild, ChannelID: tAnnounce, MessageID: "announce-1", UserID: user, Emoji: emoji}
}

func TestReactionWithoutSessionIsRetracted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	must(t, h.reactions.OnAdd(ctx, react(EmojiAddRole, "user2")))
	if len(h.msg.retracted) != 1 || h.msg.retracted[0] != "announce-1:➕:user2" {
		t.Fatalf("retracted = %v", h.msg.retracted)
	}
	if h.roles.grants != 0 || h.roles.revokes != 0 {
		t.Fatalf("role mutated: grants=%d revokes=%d", h.roles.grants, h.roles.revokes)
	}
}

func TestReactionSync(t *testing.T) {
	tests := []struct {
		name        string
		roleID      string
		active      bool
		hasRole     bool
		failGrant   bool
		emoji       string
		wantGrants  int
		wantRevokes int
		wantRetract bool
		wantHas     bool
	}{
		{name: "plus grants", roleID: "r-g1", active: true, emoji: EmojiAddRole, wantGrants: 1, wantHas: true},
		{name: "plus when member already has role", roleID: "r-g1", active: true, hasRole: true, emoji: EmojiAddRole, wantRetract: true, wantHas: true},
		{name: "plus grant failure retracts", roleID: "r-g1", active: true, failGrant: true, emoji: EmojiAddRole, wantRetract: true},
		{name: "minus revokes", roleID: "r-g1", active: true, hasRole: true, emoji: EmojiRemoveRole, wantRevokes: 1},
		{name: "inactive session", roleID: "r-g1", active: false, emoji: EmojiAddRole, wantRetract: true},
		{name: "session without role", roleID: "", active: true, emoji: EmojiAddRole, wantRetract: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.session(t, tt.roleID, tt.active)
			h.roles.failGrant = tt.failGrant
			if tt.hasRole {
				h.roles.members["user2"] = map[string]bool{"r-g1": true}
			}

			must(t, h.reactions.OnAdd(ctx, react(tt.emoji, "user2")))
			if h.roles.grants != tt.wantGrants || h.roles.revokes != tt.wantRevokes {
				t.Fatalf("grants=%d revokes=%d", h.roles.grants, h.roles.revokes)
			}
			if got := len(h.msg.retracted) == 1; got != tt.wantRetract {
				t.Fatalf("retracted = %v", h.msg.retracted)
			}
			if h.roles.has("user2", "r-g1") != tt.wantHas {
				t.Fatalf("has role = %v, want %v", !tt.wantHas, tt.wantHas)
			}
		})
	}
}

func TestReactionOtherEmojiIgnored(t *testing.T) {
	h := newHarness(t)
	must(t, h.reactions.OnAdd(context.Background(), react("🎉", "user2")))
	if len(h.msg.retracted) != 0 {
		t.Fatal("unrelated emoji must be left alone")
	}
}

func TestReactionGuildMismatch(t *testing.T) {
	h := newHarness(t)
	h.session(t, "r-g1", true)
	ev := react(EmojiAddRole, "user2")
	ev.GuildID = "guild2"
	must(t, h.reactions.OnAdd(context.Background(), ev))
	if h.roles.grants != 0 || len(h.msg.retracted) != 1 {
		t.Fatalf("grants=%d retracted=%v", h.roles.grants, h.msg.retracted)
	}
}

func TestUnreactPlusRevokes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.session(t, "r-g1", true)

	must(t, h.reactions.OnAdd(ctx, react(EmojiAddRole, "user2")))
	must(t, h.reactions.OnRemove(ctx, react(EmojiAddRole, "user2")))
	if h.roles.has("user2", "r-g1") || h.roles.revokes != 1 {
		t.Fatalf("revokes = %d", h.roles.revokes)
	}

	// removing ➖ is a no-op
	must(t, h.reactions.OnRemove(ctx, react(EmojiRemoveRole, "user2")))
	if h.roles.revokes != 1 {
		t.Fatalf("revokes = %d", h.roles.revokes)
	}
}

func TestUnreactOnDeadSessionIsNoop(t *testing.T) {
	h := newHarness(t)
	h.session(t, "r-g1", false)
	must(t, h.reactions.OnRemove(context.Background(), react(EmojiAddRole, "user2")))
	if h.roles.revokes != 0 {
		t.Fatal("inactive session must not revoke")
	}
}
