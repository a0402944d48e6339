package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

func TestOptInOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.userSvc.OptIn(ctx, tGuild, tUser)
	must(t, err)
	if v.Content != msgOptedIn {
		t.Fatalf("opt in = %q", v.Content)
	}
	if ok, _ := h.users.IsOptedIn(ctx, tGuild, tUser); !ok {
		t.Fatal("not opted in")
	}
	_, err = h.userSvc.OptOut(ctx, tGuild, tUser)
	must(t, err)
	if ok, _ := h.users.IsOptedIn(ctx, tGuild, tUser); ok {
		t.Fatal("still opted in")
	}

	// opted out users are never prompted
	must(t, h.guilds.SetGameEnabled(ctx, tGuild, "g1", true))
	must(t, h.presence.Handle(ctx, PresenceEvent{GuildID: tGuild, UserID: tUser, NewName: "Helldivers 2"}))
	if len(h.msg.dms) != 0 {
		t.Fatal("opted-out user was prompted")
	}
}

func TestDeleteMyDataErasesEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	k, prompt := h.prompt(t)
	picker, err := h.share.Handle(ctx, tUser, shareCB(t, findButton(t, prompt, "Share")), nil)
	must(t, err)
	sel := picker.Rows[0].Select
	_, err = h.share.Handle(ctx, tUser, shareCB(t, Button{CustomID: sel.CustomID}), []string{string(domain.DetailNone)})
	must(t, err)
	if _, ok := h.pending.Get(k); !ok {
		t.Fatal("setup: expected a draft")
	}
	must(t, h.users.SaveSharedDetail(ctx, tGuild, tUser, domain.DetailSteam, "steam-1"))
	must(t, h.users.SetGameSelected(ctx, tGuild, tUser, "g1", true))
	must(t, h.ledger.SetTimeoutDays(ctx, k, 1))
	must(t, h.ledger.MarkUnknownPrompted(ctx, tGuild, tUser, "Some Indie Game"))
	if h.users.rows(tGuild, tUser) == 0 {
		t.Fatal("setup stored nothing")
	}

	v, err := h.userSvc.DeleteMyData(ctx, tGuild, tUser)
	must(t, err)
	if v.Content != msgDataDeleted {
		t.Fatalf("reply = %q", v.Content)
	}
	if n := h.users.rows(tGuild, tUser); n != 0 {
		t.Fatalf("rows left = %d", n)
	}
	if _, ok := h.pending.Get(k); ok {
		t.Fatal("cached draft survived erasure")
	}

	// idempotent on an empty user
	_, err = h.userSvc.DeleteMyData(ctx, tGuild, "nobody")
	must(t, err)
}

func TestCancelTimeouts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	k, _ := h.prompt(t)
	must(t, h.ledger.SetTimeoutDays(ctx, k, 7))
	if !h.ledgerDB.inFlight(k) {
		t.Fatal("setup: expected in flight")
	}
	v, err := h.userSvc.CancelTimeouts(ctx, tGuild, tUser)
	must(t, err)
	if v.Content != msgTimeoutsCleared {
		t.Fatalf("reply = %q", v.Content)
	}
	g, _ := h.ledger.Check(ctx, k)
	if g.TimedOut || h.ledgerDB.inFlight(k) {
		t.Fatalf("gates = %+v in flight = %v", g, h.ledgerDB.inFlight(k))
	}

	h.clock.Advance(testCooldown)
	must(t, h.presence.Handle(ctx, PresenceEvent{GuildID: tGuild, UserID: tUser, OldName: "x", NewName: "Helldivers 2"}))
	if len(h.msg.dms) != 2 {
		t.Fatalf("dms = %d, want a fresh prompt", len(h.msg.dms))
	}
}

func TestRolesBoardRequiresOptIn(t *testing.T) {
	h := newHarness(t)
	v, err := h.userSvc.OpenRoles(context.Background(), tGuild, tUser)
	must(t, err)
	if v.Content != msgOptInFirst {
		t.Fatalf("reply = %q", v.Content)
	}
}

func TestRolesBoardToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	k := h.ready(t)
	must(t, h.ledger.Ignore(ctx, k))

	v, err := h.userSvc.OpenRoles(ctx, tGuild, tUser)
	must(t, err)
	b := findButton(t, v, "❌ Helldivers 2")
	cb := parse(t, b.CustomID).(domain.SessionCallback)

	v, err = h.userSvc.HandleRoles(ctx, tGuild, tUser, cb)
	must(t, err)
	findButton(t, v, "✅ Helldivers 2")
	if !h.roles.has(tUser, "r-g1") {
		t.Fatal("toggle on should grant the role")
	}
	if g, _ := h.ledger.Check(ctx, k); g.Ignored {
		t.Fatal("toggle should clear the ignore flag")
	}

	v, err = h.userSvc.HandleRoles(ctx, tGuild, tUser, cb)
	must(t, err)
	findButton(t, v, "⬜ Helldivers 2")
	if h.roles.has(tUser, "r-g1") {
		t.Fatal("toggle off should revoke the role")
	}

	// someone else cannot drive this board
	v, _ = h.userSvc.HandleRoles(ctx, tGuild, "user2", cb)
	if !strings.HasPrefix(v.Content, "State expired.") {
		t.Fatalf("foreign user = %q", v.Content)
	}
}

func TestRolesBoardClearAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ready(t)
	must(t, h.users.SetGameSelected(ctx, tGuild, tUser, "g1", true))
	h.roles.members[tUser] = map[string]bool{"r-g1": true}

	v, err := h.userSvc.OpenRoles(ctx, tGuild, tUser)
	must(t, err)
	cb := parse(t, findButton(t, v, "Clear all").CustomID).(domain.SessionCallback)
	v, err = h.userSvc.HandleRoles(ctx, tGuild, tUser, cb)
	must(t, err)
	findButton(t, v, "⬜ Helldivers 2")
	if h.roles.has(tUser, "r-g1") {
		t.Fatal("clear should revoke mapped roles")
	}
	if ids, _ := h.users.ListSelectedGameIDs(ctx, tGuild, tUser); len(ids) != 0 {
		t.Fatalf("selected = %v", ids)
	}
}

func TestRolesToggleDisabledGame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ready(t)
	v, err := h.userSvc.OpenRoles(ctx, tGuild, tUser)
	must(t, err)
	cb := parse(t, findButton(t, v, "⬜ Helldivers 2").CustomID).(domain.SessionCallback)
	must(t, h.guilds.SetGameEnabled(ctx, tGuild, "g1", false))

	v, err = h.userSvc.HandleRoles(ctx, tGuild, tUser, cb)
	must(t, err)
	if len(v.Followups) != 1 || v.Followups[0] != "That game is not enabled." {
		t.Fatalf("followups = %v", v.Followups)
	}
}
