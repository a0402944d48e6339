package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// LedgerRepo persists the prompt gates: cooldowns, timeouts, ignores and the
// in-flight flag, for known games and for unknown presence names.
// Timestamps come from the caller so the service clock stays authoritative.
type LedgerRepo struct{ db *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) LastPromptedAt(ctx context.Context, k domain.ShareKey) (*time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT last_prompted_at FROM prompt_cooldowns WHERE guild_id = $1 AND user_id = $2 AND game_id = $3
`, k.GuildID, k.UserID, k.GameID).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *LedgerRepo) TouchPrompted(ctx context.Context, k domain.ShareKey, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO prompt_cooldowns (guild_id, user_id, game_id, last_prompted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id, user_id, game_id) DO UPDATE SET last_prompted_at = EXCLUDED.last_prompted_at
`, k.GuildID, k.UserID, k.GameID, at)
	return err
}

func (r *LedgerRepo) TimeoutUntil(ctx context.Context, k domain.ShareKey) (*time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT until FROM game_prompt_timeouts WHERE guild_id = $1 AND user_id = $2 AND game_id = $3
`, k.GuildID, k.UserID, k.GameID).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *LedgerRepo) SetTimeout(ctx context.Context, k domain.ShareKey, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO game_prompt_timeouts (guild_id, user_id, game_id, until)
VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id, user_id, game_id) DO UPDATE SET until = EXCLUDED.until
`, k.GuildID, k.UserID, k.GameID, until)
	return err
}

// ClearTimeoutsForUser returns how many timeouts were removed.
func (r *LedgerRepo) ClearTimeoutsForUser(ctx context.Context, guildID, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM game_prompt_timeouts WHERE guild_id = $1 AND user_id = $2
`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LedgerRepo) IsIgnored(ctx context.Context, k domain.ShareKey) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM ignored_games WHERE guild_id = $1 AND user_id = $2 AND game_id = $3)
`, k.GuildID, k.UserID, k.GameID).Scan(&ok)
	return ok, err
}

func (r *LedgerRepo) SetIgnored(ctx context.Context, k domain.ShareKey, ignored bool) error {
	if ignored {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO ignored_games (guild_id, user_id, game_id) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, k.GuildID, k.UserID, k.GameID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM ignored_games WHERE guild_id = $1 AND user_id = $2 AND game_id = $3
`, k.GuildID, k.UserID, k.GameID)
	return err
}

func (r *LedgerRepo) ListIgnoredGameIDs(ctx context.Context, guildID, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT game_id FROM ignored_games WHERE guild_id = $1 AND user_id = $2
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

// Status is IDLE when no row exists.
func (r *LedgerRepo) Status(ctx context.Context, k domain.ShareKey) (domain.ShareStatus, error) {
	var s string
	err := r.db.QueryRowContext(ctx, `
SELECT status FROM share_request_states WHERE guild_id = $1 AND user_id = $2 AND game_id = $3
`, k.GuildID, k.UserID, k.GameID).Scan(&s)
	if err == sql.ErrNoRows {
		return domain.ShareIdle, nil
	}
	return domain.ShareStatus(s), err
}

func (r *LedgerRepo) SetStatus(ctx context.Context, k domain.ShareKey, s domain.ShareStatus, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO share_request_states (guild_id, user_id, game_id, status, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (guild_id, user_id, game_id) DO UPDATE SET
  status     = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, k.GuildID, k.UserID, k.GameID, string(s), at)
	return err
}

// TryAcquire flips IDLE (or missing) to IN_FLIGHT in one statement and
// reports whether this caller won the slot.
func (r *LedgerRepo) TryAcquire(ctx context.Context, k domain.ShareKey, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
INSERT INTO share_request_states (guild_id, user_id, game_id, status, updated_at)
VALUES ($1, $2, $3, 'IN_FLIGHT', $4)
ON CONFLICT (guild_id, user_id, game_id) DO UPDATE SET
  status     = 'IN_FLIGHT',
  updated_at = EXCLUDED.updated_at
WHERE share_request_states.status = 'IDLE'
`, k.GuildID, k.UserID, k.GameID, at))
}

// ResetInFlightForUser puts every IN_FLIGHT row of (guild,user) back to IDLE.
func (r *LedgerRepo) ResetInFlightForUser(ctx context.Context, guildID, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE share_request_states
   SET status = 'IDLE', updated_at = $3
 WHERE guild_id = $1 AND user_id = $2 AND status = 'IN_FLIGHT'
`, guildID, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LedgerRepo) UnknownLastPromptedAt(ctx context.Context, guildID, userID, presenceName string) (*time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `
SELECT last_prompted_at FROM unknown_prompt_cooldowns WHERE guild_id = $1 AND user_id = $2 AND presence_name = $3
`, guildID, userID, presenceName).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *LedgerRepo) TouchUnknownPrompted(ctx context.Context, guildID, userID, presenceName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO unknown_prompt_cooldowns (guild_id, user_id, presence_name, last_prompted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id, user_id, presence_name) DO UPDATE SET last_prompted_at = EXCLUDED.last_prompted_at
`, guildID, userID, presenceName, at)
	return err
}

func (r *LedgerRepo) IsUnknownIgnored(ctx context.Context, guildID, userID, presenceName string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM ignored_unknown_games WHERE guild_id = $1 AND user_id = $2 AND presence_name = $3)
`, guildID, userID, presenceName).Scan(&ok)
	return ok, err
}

func (r *LedgerRepo) IgnoreUnknown(ctx context.Context, guildID, userID, presenceName string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ignored_unknown_games (guild_id, user_id, presence_name) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, guildID, userID, presenceName)
	return err
}
