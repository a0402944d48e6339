package service

import (
	"context"
	"time"

	"github.com/stlmattjohnson/gameshare-bot/internal/domain"
)

// Implemented by storage.LedgerRepo
type LedgerStore interface {
	LastPromptedAt(ctx context.Context, k domain.ShareKey) (*time.Time, error)
	TouchPrompted(ctx context.Context, k domain.ShareKey, at time.Time) error
	TimeoutUntil(ctx context.Context, k domain.ShareKey) (*time.Time, error)
	SetTimeout(ctx context.Context, k domain.ShareKey, until time.Time) error
	ClearTimeoutsForUser(ctx context.Context, guildID, userID string) (int64, error)
	IsIgnored(ctx context.Context, k domain.ShareKey) (bool, error)
	SetIgnored(ctx context.Context, k domain.ShareKey, ignored bool) error
	ListIgnoredGameIDs(ctx context.Context, guildID, userID string) ([]string, error)
	Status(ctx context.Context, k domain.ShareKey) (domain.ShareStatus, error)
	SetStatus(ctx context.Context, k domain.ShareKey, s domain.ShareStatus, at time.Time) error
	TryAcquire(ctx context.Context, k domain.ShareKey, at time.Time) (bool, error)
	ResetInFlightForUser(ctx context.Context, guildID, userID string, at time.Time) (int64, error)

	UnknownLastPromptedAt(ctx context.Context, guildID, userID, presenceName string) (*time.Time, error)
	TouchUnknownPrompted(ctx context.Context, guildID, userID, presenceName string, at time.Time) error
	IsUnknownIgnored(ctx context.Context, guildID, userID, presenceName string) (bool, error)
	IgnoreUnknown(ctx context.Context, guildID, userID, presenceName string) error
}

// Implemented by storage.GuildRepo
type GuildStore interface {
	GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, error)
	SetAnnounceChannel(ctx context.Context, guildID, channelID string) error
	SetRequestChannel(ctx context.Context, guildID, channelID string) error
	ListEnabledGameIDs(ctx context.Context, guildID string) ([]string, error)
	IsGameEnabled(ctx context.Context, guildID, gameID string) (bool, error)
	SetGameEnabled(ctx context.Context, guildID, gameID string, enabled bool) error
	GetRoleID(ctx context.Context, guildID, gameID string) (string, error)
	SetRoleID(ctx context.Context, guildID, gameID, roleID string) error
	ListMappings(ctx context.Context, guildID string) ([]domain.RoleMapping, error)
}

// Implemented by storage.CustomGameRepo
type CustomGameStore interface {
	ListCustomGames(ctx context.Context, guildID string) ([]domain.CustomGame, error)
	FindByName(ctx context.Context, guildID, name string) (domain.CustomGame, error)
	Create(ctx context.Context, cg domain.CustomGame) (domain.CustomGame, error)
	NamesByIDs(ctx context.Context, guildID string, ids []string) (map[string]string, error)
}

// Implemented by storage.UserRepo
type UserStore interface {
	SetOptIn(ctx context.Context, guildID, userID string, optedIn bool) error
	IsOptedIn(ctx context.Context, guildID, userID string) (bool, error)
	ListSelectedGameIDs(ctx context.Context, guildID, userID string) ([]string, error)
	SetGameSelected(ctx context.Context, guildID, userID, gameID string, selected bool) error
	ClearSelectedGames(ctx context.Context, guildID, userID string) error
	GetSharedDetails(ctx context.Context, guildID, userID string) (domain.SharedDetails, error)
	SaveSharedDetail(ctx context.Context, guildID, userID string, kind domain.DetailKind, value string) error
	EraseUser(ctx context.Context, guildID, userID string) error
}

// Implemented by storage.SessionRepo
type SessionStore interface {
	Create(ctx context.Context, s domain.AnnouncementSession) (domain.AnnouncementSession, error)
	GetByMessageID(ctx context.Context, messageID string) (domain.AnnouncementSession, error)
	ListActiveForUser(ctx context.Context, guildID, userID string) ([]domain.AnnouncementSession, error)
	ListActiveForGuild(ctx context.Context, guildID string) ([]domain.AnnouncementSession, error)
	MarkInactive(ctx context.Context, id int64) error
}

// Implemented by storage.RequestRepo
type RequestStore interface {
	CreatePending(ctx context.Context, guildID, userID, presenceName string) (domain.GameAddRequest, bool, error)
	ListPending(ctx context.Context, guildID string) ([]domain.GameAddRequest, error)
	GetPending(ctx context.Context, guildID string, id int64) (domain.GameAddRequest, error)
	Resolve(ctx context.Context, guildID string, id int64, status domain.RequestStatus) (bool, error)
}

// Implemented by catalog.Resolver
type GameResolver interface {
	ResolveByPresenceText(ctx context.Context, guildID, raw string) (domain.Game, error)
	SearchAll(ctx context.Context, guildID, query string) ([]domain.Game, error)
	GetAnyByID(ctx context.Context, guildID, id string) (domain.Game, error)
	GetAnyByIDs(ctx context.Context, guildID string, ids []string) ([]domain.Game, error)
}

// MessageRef points at a posted message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Messenger is the outbound side of the chat platform (discord.Platform).
type Messenger interface {
	// SendDM fails with ErrDMClosed when the user does not accept DMs.
	SendDM(ctx context.Context, userID string, v View) (MessageRef, error)
	// ResolveTextChannel fails with ErrChannelUnavailable when the channel is
	// missing, in another guild or not a text channel.
	ResolveTextChannel(ctx context.Context, guildID, channelID string) error
	CanPost(ctx context.Context, channelID string) (bool, error)
	SendChannel(ctx context.Context, channelID string, v View) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, v View) error
	AddReaction(ctx context.Context, ref MessageRef, emoji string) error
	RemoveUserReaction(ctx context.Context, ref MessageRef, emoji, userID string) error
	RemoveAllReactions(ctx context.Context, ref MessageRef) error
}

// RoleManager wraps guild role CRUD and hierarchy checks (discord.Platform).
type RoleManager interface {
	EnsureRoleForGame(ctx context.Context, guildID, gameName string) (string, error)
	// CanManageRole checks the bot's Manage Roles permission and hierarchy.
	CanManageRole(ctx context.Context, guildID, roleID string) (bool, string)
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
	MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}
