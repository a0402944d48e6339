package storage

import (
	"context"
	"database/sql"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// SessionRepo stores posted announcements for reaction→role sync.
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, message_id, guild_id, channel_id, user_id, game_id,
       COALESCE(role_id,''), COALESCE(detail_kind,''), COALESCE(detail_value,''), active, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanSession(sc scanner) (domain.AnnouncementSession, error) {
	var s domain.AnnouncementSession
	var kind string
	err := sc.Scan(&s.ID, &s.MessageID, &s.GuildID, &s.ChannelID, &s.UserID, &s.GameID,
		&s.RoleID, &kind, &s.DetailValue, &s.Active, &s.CreatedAt)
	s.DetailKind = domain.DetailKind(kind)
	return s, err
}

func scanSessions(rows *sql.Rows) ([]domain.AnnouncementSession, error) {
	defer rows.Close()
	var out []domain.AnnouncementSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create is keyed by message id; replaying it for the same message is a no-op
// that returns the stored row.
func (r *SessionRepo) Create(ctx context.Context, s domain.AnnouncementSession) (domain.AnnouncementSession, error) {
	kind := ""
	if s.DetailKind != domain.DetailNone {
		kind = string(s.DetailKind)
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO announcement_sessions
  (message_id, guild_id, channel_id, user_id, game_id, role_id, detail_kind, detail_value, active)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)
ON CONFLICT (message_id) DO UPDATE SET message_id = EXCLUDED.message_id
RETURNING `+sessionCols,
		s.MessageID, s.GuildID, s.ChannelID, s.UserID, s.GameID, nullStr(s.RoleID), nullStr(kind), nullStr(s.DetailValue))
	return scanSession(row)
}

func (r *SessionRepo) GetByMessageID(ctx context.Context, messageID string) (domain.AnnouncementSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM announcement_sessions WHERE message_id = $1`, messageID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return domain.AnnouncementSession{}, ErrNotFound
	}
	return s, err
}

func (r *SessionRepo) ListActiveForUser(ctx context.Context, guildID, userID string) ([]domain.AnnouncementSession, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sessionCols+` FROM announcement_sessions
 WHERE guild_id = $1 AND user_id = $2 AND active
 ORDER BY created_at DESC
`, guildID, userID)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (r *SessionRepo) ListActiveForGuild(ctx context.Context, guildID string) ([]domain.AnnouncementSession, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sessionCols+` FROM announcement_sessions
 WHERE guild_id = $1 AND active
 ORDER BY created_at DESC
`, guildID)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (r *SessionRepo) MarkInactive(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE announcement_sessions SET active = FALSE WHERE id = $1`, id)
	return err
}
