package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/stlmattjohnson/gameshare-bot/internal/infra/logging"
)

const (
	defaultStaleAfter = 24 * time.Hour
	retention         = 30 * 24 * time.Hour
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type job struct {
	name  string
	query string
	arg   time.Duration
}

func jobs(staleAfter time.Duration) []job {
	return []job{
		{"reset_stale_in_flight", `
UPDATE share_request_states SET status = 'IDLE', updated_at = now()
WHERE status = 'IN_FLIGHT' AND updated_at < now() - $1::interval;`, staleAfter},
		{"expired_timeouts", `DELETE FROM game_prompt_timeouts WHERE until < now() - $1::interval;`, 0},
		{"resolved_requests", `
DELETE FROM game_add_requests
WHERE status <> 'PENDING' AND resolved_at < now() - $1::interval;`, retention},
		{"inactive_sessions", `
DELETE FROM announcement_sessions
WHERE NOT active AND created_at < now() - $1::interval;`, retention},
	}
}

// sweep runs every job and keeps going past failures.
func sweep(ctx context.Context, db execer, staleAfter time.Duration) (map[string]int64, error) {
	out := map[string]int64{}
	var failed []string
	for _, j := range jobs(staleAfter) {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		tag, err := db.Exec(cctx, j.query, fmt.Sprintf("%d seconds", int64(j.arg.Seconds())))
		cancel()
		if err != nil {
			log.Error().Err(err).Str("job", j.name).Msg("janitor job failed")
			failed = append(failed, j.name)
			continue
		}
		out[j.name] = tag.RowsAffected()
	}
	if len(failed) > 0 {
		return out, fmt.Errorf("failed jobs: %s", strings.Join(failed, ", "))
	}
	return out, nil
}

func staleAfter() time.Duration {
	if v := strings.TrimSpace(os.Getenv("STALE_IN_FLIGHT_AFTER")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultStaleAfter
}

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	counts, err := sweep(ctx, pool, staleAfter())
	ev := log.Info()
	for k, n := range counts {
		ev = ev.Int64(k, n)
	}
	ev.Msg("janitor sweep")
	if err != nil {
		return "partial", err
	}
	return "ok", nil
}

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), false)
	lambda.Start(handler)
}
