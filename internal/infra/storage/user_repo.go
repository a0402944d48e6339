package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// UserRepo holds per-(guild,user) preferences: opt-in, role picks and the
// last detail values a user shared.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) SetOptIn(ctx context.Context, guildID, userID string, optedIn bool) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_opt_ins (guild_id, user_id, opted_in)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  opted_in   = EXCLUDED.opted_in,
  updated_at = NOW()
`, guildID, userID, optedIn)
	return err
}

// IsOptedIn is false when no row exists.
func (r *UserRepo) IsOptedIn(ctx context.Context, guildID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
SELECT opted_in FROM user_opt_ins WHERE guild_id = $1 AND user_id = $2
`, guildID, userID).Scan(&ok)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return ok, err
}

func (r *UserRepo) ListSelectedGameIDs(ctx context.Context, guildID, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT game_id FROM user_game_role_prefs WHERE guild_id = $1 AND user_id = $2 ORDER BY game_id
`, guildID, userID)
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

func (r *UserRepo) SetGameSelected(ctx context.Context, guildID, userID, gameID string, selected bool) error {
	if selected {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO user_game_role_prefs (guild_id, user_id, game_id) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, guildID, userID, gameID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM user_game_role_prefs WHERE guild_id = $1 AND user_id = $2 AND game_id = $3
`, guildID, userID, gameID)
	return err
}

func (r *UserRepo) ClearSelectedGames(ctx context.Context, guildID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM user_game_role_prefs WHERE guild_id = $1 AND user_id = $2
`, guildID, userID)
	return err
}

// GetSharedDetails returns zero values when nothing was saved.
func (r *UserRepo) GetSharedDetails(ctx context.Context, guildID, userID string) (domain.SharedDetails, error) {
	var d domain.SharedDetails
	err := r.db.QueryRowContext(ctx, `
SELECT steam_id, server_name, server_ip FROM user_shared_details WHERE guild_id = $1 AND user_id = $2
`, guildID, userID).Scan(&d.SteamID, &d.ServerName, &d.ServerIP)
	if err == sql.ErrNoRows {
		return domain.SharedDetails{}, nil
	}
	return d, err
}

// SaveSharedDetail remembers value for one kind and leaves the others alone.
func (r *UserRepo) SaveSharedDetail(ctx context.Context, guildID, userID string, kind domain.DetailKind, value string) error {
	var col string
	switch kind {
	case domain.DetailSteam:
		col = "steam_id"
	case domain.DetailServerName:
		col = "server_name"
	case domain.DetailServerIP:
		col = "server_ip"
	default:
		return nil
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO user_shared_details (guild_id, user_id, %[1]s)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  %[1]s      = EXCLUDED.%[1]s,
  updated_at = NOW()
`, col), guildID, userID, value)
	return err
}

// per-user tables wiped by EraseUser; announcement_sessions and
// game_add_requests are guild records and stay
var userTables = []string{
	"user_opt_ins",
	"user_game_role_prefs",
	"user_shared_details",
	"prompt_cooldowns",
	"game_prompt_timeouts",
	"ignored_games",
	"share_request_states",
	"unknown_prompt_cooldowns",
	"ignored_unknown_games",
}

// EraseUser deletes every per-user row for (guild,user) in one transaction.
// Calling it with nothing stored is a no-op.
func (r *UserRepo) EraseUser(ctx context.Context, guildID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range userTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t+` WHERE guild_id = $1 AND user_id = $2`, guildID, userID); err != nil {
			return fmt.Errorf("erase %s: %w", t, err)
		}
	}
	return tx.Commit()
}
