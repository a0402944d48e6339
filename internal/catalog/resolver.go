package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

var ErrNotFound = errors.New("game not found")

// CustomGameLister is satisfied by storage.CustomGameRepo.
type CustomGameLister interface {
	ListCustomGames(ctx context.Context, guildID string) ([]domain.CustomGame, error)
}

// Resolver looks games up across the static catalog and a guild's custom
// games. Static entries always win.
type Resolver struct {
	static *Catalog
	custom CustomGameLister
}

func NewResolver(static *Catalog, custom CustomGameLister) *Resolver {
	return &Resolver{static: static, custom: custom}
}

// ResolveByPresenceText maps a raw presence name to a game, or ErrNotFound.
func (r *Resolver) ResolveByPresenceText(ctx context.Context, guildID, raw string) (domain.Game, error) {
	if g, ok := r.static.Match(raw); ok {
		return g, nil
	}
	customs, err := r.custom.ListCustomGames(ctx, guildID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("list custom games: %w", err)
	}

	keys := []string{Normalize(raw)}
	if s := simplify(raw); s != "" {
		if k := Normalize(s); k != keys[0] {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		for _, cg := range customs {
			if Normalize(cg.Name) == key || (cg.PresenceName != "" && Normalize(cg.PresenceName) == key) {
				return cg.Game(), nil
			}
		}
	}
	return domain.Game{}, ErrNotFound
}

// SearchAll lists custom games first, then static ones, filtered by query.
func (r *Resolver) SearchAll(ctx context.Context, guildID, query string) ([]domain.Game, error) {
	customs, err := r.custom.ListCustomGames(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list custom games: %w", err)
	}
	q := Normalize(query)
	var out []domain.Game
	for _, cg := range customs {
		if q == "" || containsNorm(cg.Name, q) || containsNorm(cg.PresenceName, q) {
			out = append(out, cg.Game())
		}
	}
	sortByName(out)
	return append(out, r.static.Search(query)...), nil
}

// GetAnyByID finds a static or custom game by id.
func (r *Resolver) GetAnyByID(ctx context.Context, guildID, id string) (domain.Game, error) {
	if g, ok := r.static.GetByID(id); ok {
		return g, nil
	}
	customs, err := r.custom.ListCustomGames(ctx, guildID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("list custom games: %w", err)
	}
	for _, cg := range customs {
		if cg.ID == id {
			return cg.Game(), nil
		}
	}
	return domain.Game{}, ErrNotFound
}

// GetAnyByIDs returns the games it can find, in the order of ids.
// Unknown ids are skipped.
func (r *Resolver) GetAnyByIDs(ctx context.Context, guildID string, ids []string) ([]domain.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var customByID map[string]domain.Game
	out := make([]domain.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := r.static.GetByID(id); ok {
			out = append(out, g)
			continue
		}
		if customByID == nil {
			customs, err := r.custom.ListCustomGames(ctx, guildID)
			if err != nil {
				return nil, fmt.Errorf("list custom games: %w", err)
			}
			customByID = make(map[string]domain.Game, len(customs))
			for _, cg := range customs {
				customByID[cg.ID] = cg.Game()
			}
		}
		if g, ok := customByID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func containsNorm(s, q string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(Normalize(s), q)
}
