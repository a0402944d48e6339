package discord

import (
	"time"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
)

// Services is everything the router dispatches into.
type Services struct {
	Share     *service.ShareService
	Requests  *service.RequestService
	Guilds    *service.GuildService
	Users     *service.UserService
	Sessions  *service.SessionService
	Presence  *service.PresenceService
	Reactions *service.ReactionService
}

type Options struct {
	// GuildID scopes command registration; empty registers globally.
	GuildID       string
	ClickCooldown time.Duration
	// Timeout bounds one interaction's service work.
	Timeout time.Duration
}
