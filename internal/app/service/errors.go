package service

import (
	"errors"

	"github.com/rs/zerolog"
)

var (
	ErrShareExpired       = errors.New("share expired")
	ErrNoAnnounceChannel  = errors.New("announce channel not configured")
	ErrChannelUnavailable = errors.New("channel missing or not a text channel")
	ErrRequestNotFound    = errors.New("request not found")
	ErrDMClosed           = errors.New("user does not accept direct messages")
)

// bestEffort logs a failed side effect and swallows it. It reports whether
// the call succeeded.
func bestEffort(log zerolog.Logger, op string, err error) bool {
	if err == nil {
		return true
	}
	log.Warn().Err(err).Str("op", op).Msg("best-effort step failed")
	return false
}

const msgExpiredState = "State expired. Run %s again."
