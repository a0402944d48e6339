package storage

import (
	"context"
	"database/sql"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// GuildRepo stores channel config, enabled games, and game→role mappings.
type GuildRepo struct{ db *sql.DB }

func NewGuildRepo(db *sql.DB) *GuildRepo { return &GuildRepo{db: db} }

func (r *GuildRepo) GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT guild_id, COALESCE(announce_channel_id,''), COALESCE(request_channel_id,''), created_at, updated_at
  FROM guild_configs
 WHERE guild_id = $1
`, guildID)
	var gc domain.GuildConfig
	err := row.Scan(&gc.GuildID, &gc.AnnounceChannelID, &gc.RequestChannelID, &gc.CreatedAt, &gc.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.GuildConfig{GuildID: guildID}, ErrNotFound
	}
	return gc, err
}

func (r *GuildRepo) SetAnnounceChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id, announce_channel_id)
VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET
  announce_channel_id = EXCLUDED.announce_channel_id,
  updated_at          = NOW()
`, guildID, nullStr(channelID))
	return err
}

func (r *GuildRepo) SetRequestChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id, request_channel_id)
VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET
  request_channel_id = EXCLUDED.request_channel_id,
  updated_at         = NOW()
`, guildID, nullStr(channelID))
	return err
}

func (r *GuildRepo) ListEnabledGameIDs(ctx context.Context, guildID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT game_id FROM enabled_games WHERE guild_id = $1 ORDER BY created_at, game_id
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *GuildRepo) IsGameEnabled(ctx context.Context, guildID, gameID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM enabled_games WHERE guild_id = $1 AND game_id = $2)
`, guildID, gameID).Scan(&ok)
	return ok, err
}

// SetGameEnabled is idempotent in both directions. Disabling keeps the role
// mapping so re-enabling reuses the same role.
func (r *GuildRepo) SetGameEnabled(ctx context.Context, guildID, gameID string, enabled bool) error {
	if enabled {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO enabled_games (guild_id, game_id) VALUES ($1, $2)
ON CONFLICT (guild_id, game_id) DO NOTHING
`, guildID, gameID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM enabled_games WHERE guild_id = $1 AND game_id = $2
`, guildID, gameID)
	return err
}

func (r *GuildRepo) GetRoleID(ctx context.Context, guildID, gameID string) (string, error) {
	var roleID string
	err := r.db.QueryRowContext(ctx, `
SELECT role_id FROM game_role_mappings WHERE guild_id = $1 AND game_id = $2
`, guildID, gameID).Scan(&roleID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return roleID, err
}

func (r *GuildRepo) SetRoleID(ctx context.Context, guildID, gameID, roleID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO game_role_mappings (guild_id, game_id, role_id)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id, game_id) DO UPDATE SET role_id = EXCLUDED.role_id
`, guildID, gameID, roleID)
	return err
}

func (r *GuildRepo) ListMappings(ctx context.Context, guildID string) ([]domain.RoleMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, game_id, role_id FROM game_role_mappings WHERE guild_id = $1 ORDER BY game_id
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RoleMapping
	for rows.Next() {
		var m domain.RoleMapping
		if err := rows.Scan(&m.GuildID, &m.GameID, &m.RoleID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
