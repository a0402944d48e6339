package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

//go:embed games.yaml
var gamesYAML []byte

type catalogFile struct {
	Games []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		SteamAppID int    `yaml:"steam_app_id"`
	} `yaml:"games"`
	Aliases map[string]string `yaml:"aliases"`
}

// Catalog is the built-in game list with an O(1) normalized-name index.
type Catalog struct {
	games   []domain.Game
	byID    map[string]domain.Game
	byNorm  map[string]domain.Game
	aliases map[string]string // normalized variant -> normalized canonical
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(gamesYAML)
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML in the games.yaml shape.
func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	games := make([]domain.Game, 0, len(f.Games))
	for _, g := range f.Games {
		games = append(games, domain.Game{ID: g.ID, Name: g.Name, SteamAppID: g.SteamAppID})
	}
	return New(games, f.Aliases)
}

// New indexes games. Duplicate ids or names that normalize to the same key
// are rejected; aliases must point at a known name.
func New(games []domain.Game, aliases map[string]string) (*Catalog, error) {
	c := &Catalog{
		games:   make([]domain.Game, 0, len(games)),
		byID:    make(map[string]domain.Game, len(games)),
		byNorm:  make(map[string]domain.Game, len(games)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, g := range games {
		if g.ID == "" || strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("catalog: entry %q has empty id or name", g.ID)
		}
		if _, dup := c.byID[g.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %s", g.ID)
		}
		key := Normalize(g.Name)
		if prev, dup := c.byNorm[key]; dup {
			return nil, fmt.Errorf("catalog: %q and %q normalize to %q", prev.Name, g.Name, key)
		}
		c.games = append(c.games, g)
		c.byID[g.ID] = g
		c.byNorm[key] = g
	}
	for from, to := range aliases {
		target := Normalize(to)
		if _, ok := c.byNorm[target]; !ok {
			return nil, fmt.Errorf("catalog: alias %q points at unknown game %q", from, to)
		}
		c.aliases[Normalize(from)] = target
	}
	return c, nil
}

// All returns the games sorted by name.
func (c *Catalog) All() []domain.Game {
	out := append([]domain.Game(nil), c.games...)
	sortByName(out)
	return out
}

func (c *Catalog) GetByID(id string) (domain.Game, bool) {
	g, ok := c.byID[id]
	return g, ok
}

// Search returns games whose normalized name contains the normalized query.
// An empty query returns everything.
func (c *Catalog) Search(query string) []domain.Game {
	q := Normalize(query)
	if q == "" {
		return c.All()
	}
	var out []domain.Game
	for _, g := range c.games {
		if strings.Contains(Normalize(g.Name), q) {
			out = append(out, g)
		}
	}
	sortByName(out)
	return out
}

// Match resolves a raw presence name: direct, alias, then the simplified
// form (trailing "(…)" / " - …" removed) tried direct and via alias.
func (c *Catalog) Match(raw string) (domain.Game, bool) {
	if g, ok := c.lookup(Normalize(raw)); ok {
		return g, true
	}
	if s := simplify(raw); s != strings.TrimSpace(raw) {
		return c.lookup(Normalize(s))
	}
	return domain.Game{}, false
}

func (c *Catalog) lookup(norm string) (domain.Game, bool) {
	if norm == "" {
		return domain.Game{}, false
	}
	if g, ok := c.byNorm[norm]; ok {
		return g, true
	}
	if target, ok := c.aliases[norm]; ok {
		g, ok := c.byNorm[target]
		return g, ok
	}
	return domain.Game{}, false
}

func sortByName(gs []domain.Game) {
	sort.SliceStable(gs, func(i, j int) bool {
		return strings.ToLower(gs[i].Name) < strings.ToLower(gs[j].Name)
	})
}
