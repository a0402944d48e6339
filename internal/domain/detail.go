package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MinSteamIDLen    = 6
	MaxServerNameLen = 80
	MaxDetailLen     = 80
)

var ErrInvalidDetail = errors.New("invalid detail")

var reHostPort = regexp.MustCompile(`^[A-Za-z0-9.\-]+(:\d{2,5})?$`)

const maxPort = 65535

// DetailError carries the message shown back to the user.
type DetailError struct {
	Kind   DetailKind
	Reason string
}

func (e *DetailError) Error() string { return e.Reason }

func (e *DetailError) Unwrap() error { return ErrInvalidDetail }

// ValidateDetail checks a submitted value for kind and returns it trimmed.
func ValidateDetail(kind DetailKind, value string) (string, error) {
	v := strings.TrimSpace(value)
	if kind == DetailNone {
		return "", nil
	}
	if v == "" {
		return "", &DetailError{Kind: kind, Reason: "Value cannot be empty."}
	}

	switch kind {
	case DetailSteam:
		if utf8.RuneCountInString(v) < MinSteamIDLen {
			return "", &DetailError{Kind: kind, Reason: "That Steam ID looks too short."}
		}
	case DetailServerIP:
		if !reHostPort.MatchString(v) || !portInRange(v) {
			return "", &DetailError{Kind: kind, Reason: "Use hostname[:port] or ip[:port]."}
		}
	case DetailServerName:
		if utf8.RuneCountInString(v) > MaxServerNameLen {
			return "", &DetailError{Kind: kind, Reason: "Server name is too long."}
		}
	default:
		return "", &DetailError{Kind: kind, Reason: "Unknown detail type."}
	}
	return v, nil
}

// portInRange assumes v already matched reHostPort.
func portInRange(v string) bool {
	i := strings.LastIndexByte(v, ':')
	if i < 0 {
		return true
	}
	p, err := strconv.Atoi(v[i+1:])
	return err == nil && p <= maxPort
}

// PreviewLine renders the detail for the DM preview.
func PreviewLine(kind DetailKind, value string) string {
	switch kind {
	case DetailSteam:
		return "Steam ID: `" + value + "`"
	case DetailServerName:
		return "Server: **" + value + "**"
	case DetailServerIP:
		return "Join: `" + value + "`"
	default:
		return ""
	}
}

// AnnouncementLine renders the detail for the public post.
func AnnouncementLine(kind DetailKind, value string) string {
	switch kind {
	case DetailSteam:
		return "Steam ID: " + value
	case DetailServerName:
		return "Server Name: " + value
	case DetailServerIP:
		return "Server IP: " + value
	default:
		return ""
	}
}

// SessionLine renders the detail for the sessions listing.
func SessionLine(kind DetailKind, value string) string {
	switch kind {
	case DetailSteam:
		return "Steam: " + value
	case DetailServerName:
		return "Server Name: " + value
	case DetailServerIP:
		return "IP: " + value
	default:
		return "(none)"
	}
}
