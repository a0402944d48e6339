package domain

import "time"

// Game is a catalog entry, static or guild-custom.
type Game struct {
	ID         string
	Name       string
	SteamAppID int
	Custom     bool
}

// CustomGame is a guild-specific catalog entry created from an approved request.
type CustomGame struct {
	GuildID      string
	ID           string
	Name         string
	PresenceName string
	CreatedAt    time.Time
}

func (c CustomGame) Game() Game {
	return Game{ID: c.ID, Name: c.Name, Custom: true}
}

// GuildConfig holds per-guild channel settings.
type GuildConfig struct {
	GuildID           string
	AnnounceChannelID string
	RequestChannelID  string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RoleMapping ties an enabled game to its guild role.
type RoleMapping struct {
	GuildID string
	GameID  string
	RoleID  string
}

// AnnouncementSession is the durable record of a posted share.
type AnnouncementSession struct {
	ID          int64
	MessageID   string
	GuildID     string
	ChannelID   string
	UserID      string
	GameID      string
	RoleID      string
	DetailKind  DetailKind
	DetailValue string
	Active      bool
	CreatedAt   time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// GameAddRequest asks admins to add or enable a game seen in presence.
type GameAddRequest struct {
	ID           int64
	GuildID      string
	UserID       string
	PresenceName string
	Status       RequestStatus
	CreatedAt    time.Time
}

// SharedDetails is the last detail value a user confirmed per kind.
type SharedDetails struct {
	SteamID    string
	ServerName string
	ServerIP   string
}

func (d SharedDetails) For(kind DetailKind) string {
	switch kind {
	case DetailSteam:
		return d.SteamID
	case DetailServerName:
		return d.ServerName
	case DetailServerIP:
		return d.ServerIP
	default:
		return ""
	}
}
