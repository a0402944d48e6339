package domain

import "fmt"

// DetailKind is the optional extra a user attaches to a share.
type DetailKind string

const (
	DetailNone       DetailKind = "NONE"
	DetailSteam      DetailKind = "STEAM"
	DetailServerName DetailKind = "SERVER_NAME"
	DetailServerIP   DetailKind = "SERVER_IP"
)

// DetailKinds in picker order.
var DetailKinds = []DetailKind{DetailNone, DetailSteam, DetailServerName, DetailServerIP}

func ParseDetailKind(s string) (DetailKind, bool) {
	for _, k := range DetailKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Label is the human name used in pickers and modal titles.
func (k DetailKind) Label() string {
	switch k {
	case DetailSteam:
		return "Steam ID"
	case DetailServerName:
		return "Server Name"
	case DetailServerIP:
		return "Server IP"
	default:
		return "No details"
	}
}

// ShareKey addresses everything the negotiation keeps per (guild, user, game).
type ShareKey struct {
	GuildID string
	UserID  string
	GameID  string
}

func (k ShareKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.GuildID, k.UserID, k.GameID)
}

// PendingShare is the in-memory draft of an announcement while the user
// walks through the DM flow.
type PendingShare struct {
	GuildID     string
	UserID      string
	GameID      string
	GameName    string
	DetailKind  DetailKind
	DetailValue string
}

func (p PendingShare) Key() ShareKey {
	return ShareKey{GuildID: p.GuildID, UserID: p.UserID, GameID: p.GameID}
}

// ShareStatus is the in-flight flag of the prompt ledger.
type ShareStatus string

const (
	ShareIdle     ShareStatus = "IDLE"
	ShareInFlight ShareStatus = "IN_FLIGHT"
)
