package discord

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/infra/metrics"
)

// step times a handler into the duration histogram and a debug line.
func step(log zerolog.Logger, label string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveSince(label, start)
		log.Debug().Str("step", label).Dur("took", time.Since(start)).Msg("trace")
	}
}
