package storage

import (
	"context"
	"database/sql"

	pq "github.com/lib/pq"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

type CustomGameRepo struct{ db *sql.DB }

func NewCustomGameRepo(db *sql.DB) *CustomGameRepo { return &CustomGameRepo{db: db} }

const customGameCols = `guild_id, id, name, presence_name, created_at`

func scanCustomGames(rows *sql.Rows) ([]domain.CustomGame, error) {
	defer rows.Close()
	var out []domain.CustomGame
	for rows.Next() {
		var cg domain.CustomGame
		if err := rows.Scan(&cg.GuildID, &cg.ID, &cg.Name, &cg.PresenceName, &cg.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cg)
	}
	return out, rows.Err()
}

func (r *CustomGameRepo) ListCustomGames(ctx context.Context, guildID string) ([]domain.CustomGame, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+customGameCols+` FROM custom_games WHERE guild_id = $1 ORDER BY name
`, guildID)
	if err != nil {
		return nil, err
	}
	return scanCustomGames(rows)
}

// FindByName matches case-insensitively, like the unique index.
func (r *CustomGameRepo) FindByName(ctx context.Context, guildID, name string) (domain.CustomGame, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+customGameCols+` FROM custom_games WHERE guild_id = $1 AND lower(name) = lower($2)
`, guildID, name)
	var cg domain.CustomGame
	err := row.Scan(&cg.GuildID, &cg.ID, &cg.Name, &cg.PresenceName, &cg.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.CustomGame{}, ErrNotFound
	}
	return cg, err
}

// Create inserts the game or returns the row that already holds its name.
func (r *CustomGameRepo) Create(ctx context.Context, cg domain.CustomGame) (domain.CustomGame, error) {
	row := r.db.QueryRowContext(ctx, `
WITH ins AS (
  INSERT INTO custom_games (guild_id, id, name, presence_name)
  VALUES ($1, $2, $3, $4)
  ON CONFLICT DO NOTHING
  RETURNING `+customGameCols+`
)
SELECT `+customGameCols+` FROM ins
UNION ALL
SELECT `+customGameCols+` FROM custom_games WHERE guild_id = $1 AND lower(name) = lower($3)
LIMIT 1
`, cg.GuildID, cg.ID, cg.Name, cg.PresenceName)
	var out domain.CustomGame
	err := row.Scan(&out.GuildID, &out.ID, &out.Name, &out.PresenceName, &out.CreatedAt)
	return out, err
}

// NamesByIDs maps id -> name for the ids that exist.
func (r *CustomGameRepo) NamesByIDs(ctx context.Context, guildID string, ids []string) (map[string]string, error) {
	out := map[string]string{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name FROM custom_games WHERE guild_id = $1 AND id = ANY($2)
`, guildID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
