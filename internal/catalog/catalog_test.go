package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

type fakeCustoms struct {
	games []domain.CustomGame
	err   error
	calls int
}

func (f *fakeCustoms) ListCustomGames(_ context.Context, guildID string) ([]domain.CustomGame, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CustomGame
	for _, g := range f.games {
		if g.GuildID == guildID {
			out = append(out, g)
		}
	}
	return out, nil
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  HELLDIVERS™  2 ":                "helldivers 2",
		"Helldivers 2":                     "helldivers 2",
		"Counter-Strike: Global Offensive": "counter strike global offensive",
		"Tom Clancy's Rainbow Six® Siege":  "tom clancy's rainbow six siege",
		"Foo_Bar—Baz":                      "foo bar baz",
		"\tÉLDEN  RING\n":                  "élden ring",
		"":                                 "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.All()) < 40 {
		t.Fatalf("catalog unexpectedly small: %d", len(c.All()))
	}
	g, ok := c.GetByID("g001")
	if !ok || g.Name != "Counter-Strike 2" {
		t.Fatalf("g001 = %+v, %v", g, ok)
	}
}

func TestMatch(t *testing.T) {
	c := MustLoad()
	cases := []struct {
		in     string
		wantID string
	}{
		{"Counter-Strike 2", "g001"},
		{"counter strike 2", "g001"},
		{"Counter-Strike: Global Offensive", "g001"},
		{"  HELLDIVERS™  2 ", "g012"},
		{"Helldivers 2", "g012"},
		{"Valheim (Public Test)", "g019"},
		{"Rust - Staging Branch", "g018"},
		{"Overwatch (Beta)", "g005"},
		{"Minecraft Launcher", "g008"},
	}
	for _, tc := range cases {
		g, ok := c.Match(tc.in)
		if !ok || g.ID != tc.wantID {
			t.Errorf("Match(%q) = %+v, %v; want %s", tc.in, g, ok, tc.wantID)
		}
	}
	for _, miss := range []string{"", "   ", "Some Indie Thing", "Spotify"} {
		if g, ok := c.Match(miss); ok {
			t.Errorf("Match(%q) unexpectedly found %+v", miss, g)
		}
	}
}

func TestNewRejectsCollisions(t *testing.T) {
	_, err := New([]domain.Game{{ID: "a", Name: "Foo-Bar"}, {ID: "b", Name: "foo bar"}}, nil)
	if err == nil {
		t.Fatalf("expected normalized-name collision error")
	}
	_, err = New([]domain.Game{{ID: "a", Name: "Foo"}}, map[string]string{"F": "Nope"})
	if err == nil {
		t.Fatalf("expected dangling alias error")
	}
}

func TestSearch(t *testing.T) {
	c := MustLoad()
	got := c.Search("counter")
	if len(got) != 1 || got[0].ID != "g001" {
		t.Fatalf("Search(counter) = %+v", got)
	}
	if len(c.Search("")) != len(c.All()) {
		t.Fatalf("empty search should return everything")
	}
}

func TestResolverCustomGames(t *testing.T) {
	customs := &fakeCustoms{games: []domain.CustomGame{
		{GuildID: "g1", ID: "cg_1", Name: "Indie Dungeon", PresenceName: "IndieDungeon.exe"},
		{GuildID: "g2", ID: "cg_2", Name: "Other Guild Game"},
		// shadows a static game; static must win
		{GuildID: "g1", ID: "cg_3", Name: "Dota 2"},
	}}
	r := NewResolver(MustLoad(), customs)
	ctx := context.Background()

	g, err := r.ResolveByPresenceText(ctx, "g1", "indie dungeon")
	if err != nil || g.ID != "cg_1" || !g.Custom {
		t.Fatalf("by name = %+v, %v", g, err)
	}
	g, err = r.ResolveByPresenceText(ctx, "g1", "IndieDungeon.exe")
	if err != nil || g.ID != "cg_1" {
		t.Fatalf("by presence name = %+v, %v", g, err)
	}
	g, err = r.ResolveByPresenceText(ctx, "g1", "Indie Dungeon (Early Access)")
	if err != nil || g.ID != "cg_1" {
		t.Fatalf("simplified custom = %+v, %v", g, err)
	}
	g, err = r.ResolveByPresenceText(ctx, "g1", "Dota 2")
	if err != nil || g.ID != "g002" {
		t.Fatalf("static should win, got %+v, %v", g, err)
	}
	if _, err := r.ResolveByPresenceText(ctx, "g1", "Other Guild Game"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("custom games must not leak across guilds, err = %v", err)
	}
}

func TestResolverStaticHitSkipsStore(t *testing.T) {
	customs := &fakeCustoms{err: errors.New("db down")}
	r := NewResolver(MustLoad(), customs)
	if _, err := r.ResolveByPresenceText(context.Background(), "g1", "Dota 2"); err != nil {
		t.Fatalf("static match should not touch the store: %v", err)
	}
	if customs.calls != 0 {
		t.Fatalf("calls = %d", customs.calls)
	}
	if _, err := r.ResolveByPresenceText(context.Background(), "g1", "Unknown"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("store error should surface, got %v", err)
	}
}

func TestResolverLookups(t *testing.T) {
	customs := &fakeCustoms{games: []domain.CustomGame{{GuildID: "g1", ID: "cg_1", Name: "Zeta Custom"}}}
	r := NewResolver(MustLoad(), customs)
	ctx := context.Background()

	all, err := r.SearchAll(ctx, "g1", "")
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if all[0].ID != "cg_1" {
		t.Fatalf("custom games should come first, got %+v", all[0])
	}

	g, err := r.GetAnyByID(ctx, "g1", "cg_1")
	if err != nil || g.Name != "Zeta Custom" {
		t.Fatalf("GetAnyByID custom = %+v, %v", g, err)
	}
	if _, err := r.GetAnyByID(ctx, "g1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAnyByID missing err = %v", err)
	}

	games, err := r.GetAnyByIDs(ctx, "g1", []string{"g002", "missing", "cg_1"})
	if err != nil {
		t.Fatalf("GetAnyByIDs: %v", err)
	}
	if len(games) != 2 || games[0].ID != "g002" || games[1].ID != "cg_1" {
		t.Fatalf("GetAnyByIDs = %+v", games)
	}
}
