package storage

import (
	"context"
	"database/sql"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// RequestRepo stores "please add/enable this game" requests.
type RequestRepo struct{ db *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestCols = `id, guild_id, user_id, presence_name, status, created_at`

func scanRequest(sc scanner) (domain.GameAddRequest, error) {
	var req domain.GameAddRequest
	var st string
	err := sc.Scan(&req.ID, &req.GuildID, &req.UserID, &req.PresenceName, &st, &req.CreatedAt)
	req.Status = domain.RequestStatus(st)
	return req, err
}

// CreatePending inserts a PENDING request unless one already exists for
// (guild, presenceName). created reports whether a row was inserted; when it
// is false the returned request is the existing one.
func (r *RequestRepo) CreatePending(ctx context.Context, guildID, userID, presenceName string) (domain.GameAddRequest, bool, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO game_add_requests (guild_id, user_id, presence_name, status)
SELECT $1, $2, $3, 'PENDING'
 WHERE NOT EXISTS (
   SELECT 1 FROM game_add_requests WHERE guild_id = $1 AND presence_name = $3 AND status = 'PENDING'
 )
RETURNING `+requestCols,
		guildID, userID, presenceName)
	req, err := scanRequest(row)
	if err == nil {
		return req, true, nil
	}
	if err != sql.ErrNoRows {
		return domain.GameAddRequest{}, false, err
	}
	row = r.db.QueryRowContext(ctx, `
SELECT `+requestCols+` FROM game_add_requests
 WHERE guild_id = $1 AND presence_name = $2 AND status = 'PENDING'
 ORDER BY id LIMIT 1
`, guildID, presenceName)
	req, err = scanRequest(row)
	if err != nil {
		return domain.GameAddRequest{}, false, err
	}
	return req, false, nil
}

// ListPending is newest first.
func (r *RequestRepo) ListPending(ctx context.Context, guildID string) ([]domain.GameAddRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+requestCols+` FROM game_add_requests
 WHERE guild_id = $1 AND status = 'PENDING'
 ORDER BY created_at DESC, id DESC
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.GameAddRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *RequestRepo) GetPending(ctx context.Context, guildID string, id int64) (domain.GameAddRequest, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+requestCols+` FROM game_add_requests WHERE guild_id = $1 AND id = $2 AND status = 'PENDING'
`, guildID, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return domain.GameAddRequest{}, ErrNotFound
	}
	return req, err
}

// Resolve moves a PENDING request to status. It reports false when the
// request was already handled.
func (r *RequestRepo) Resolve(ctx context.Context, guildID string, id int64, status domain.RequestStatus) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
UPDATE game_add_requests
   SET status = $3, resolved_at = NOW()
 WHERE guild_id = $1 AND id = $2 AND status = 'PENDING'
`, guildID, id, string(status)))
}
