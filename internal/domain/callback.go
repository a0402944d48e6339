package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxCallbackLen is the platform limit for a component custom id.
const MaxCallbackLen = 100

const callbackSep = "|"

var ErrBadCallback = errors.New("bad callback")

// Intent is the fixed tag that opens every encoded callback.
type Intent string

const (
	// DM share negotiation
	IntentShareAccept      Intent = "dm_yes"
	IntentShareDecline     Intent = "dm_no"
	IntentShareTimeoutDay  Intent = "dm_to1d"
	IntentShareTimeoutWeek Intent = "dm_to1w"
	IntentShareIgnore      Intent = "dm_never"
	IntentSharePick        Intent = "dm_pick"
	IntentShareModal       Intent = "dm_modal"
	IntentShareRetry       Intent = "dm_retry"
	IntentShareConfirm     Intent = "dm_ok"
	IntentShareCancel      Intent = "dm_cancel"

	// unknown / disabled game prompt
	IntentUnknownRequest Intent = "uk_add"
	IntentUnknownNotNow  Intent = "uk_no"
	IntentUnknownIgnore  Intent = "uk_ign"

	// admin configure-games board
	IntentConfigurePrev   Intent = "cfg_prev"
	IntentConfigureNext   Intent = "cfg_next"
	IntentConfigureDone   Intent = "cfg_done"
	IntentConfigureToggle Intent = "cfg_tgl"

	// admin requests board
	IntentRequestsPrev    Intent = "req_prev"
	IntentRequestsNext    Intent = "req_next"
	IntentRequestsDone    Intent = "req_done"
	IntentRequestsApprove Intent = "req_ok"
	IntentRequestsReject  Intent = "req_no"

	// user roles board
	IntentRolesPrev   Intent = "rol_prev"
	IntentRolesNext   Intent = "rol_next"
	IntentRolesClear  Intent = "rol_clr"
	IntentRolesToggle Intent = "rol_tgl"
)

type callbackFamily int

const (
	familyShare callbackFamily = iota + 1
	familyUnknown
	familySession
)

var intentFamilies = map[Intent]callbackFamily{
	IntentShareAccept:      familyShare,
	IntentShareDecline:     familyShare,
	IntentShareTimeoutDay:  familyShare,
	IntentShareTimeoutWeek: familyShare,
	IntentShareIgnore:      familyShare,
	IntentSharePick:        familyShare,
	IntentShareModal:       familyShare,
	IntentShareRetry:       familyShare,
	IntentShareConfirm:     familyShare,
	IntentShareCancel:      familyShare,

	IntentUnknownRequest: familyUnknown,
	IntentUnknownNotNow:  familyUnknown,
	IntentUnknownIgnore:  familyUnknown,

	IntentConfigurePrev:   familySession,
	IntentConfigureNext:   familySession,
	IntentConfigureDone:   familySession,
	IntentConfigureToggle: familySession,
	IntentRequestsPrev:    familySession,
	IntentRequestsNext:    familySession,
	IntentRequestsDone:    familySession,
	IntentRequestsApprove: familySession,
	IntentRequestsReject:  familySession,
	IntentRolesPrev:       familySession,
	IntentRolesNext:       familySession,
	IntentRolesClear:      familySession,
	IntentRolesToggle:     familySession,
}

// Callback is the decoded form of a component or modal custom id.
// Concrete types are ShareCallback, UnknownCallback and SessionCallback.
type Callback interface {
	Intent() Intent
	fields() []string
}

// ShareCallback drives one step of the DM negotiation for Key.
// Kind is set on modal and retry steps.
type ShareCallback struct {
	Action Intent
	Key    ShareKey
	Kind   DetailKind
}

func (c ShareCallback) Intent() Intent { return c.Action }

func (c ShareCallback) fields() []string {
	f := []string{c.Key.GuildID, c.Key.UserID, c.Key.GameID}
	if c.Kind != "" {
		f = append(f, string(c.Kind))
	}
	return f
}

// UnknownCallback answers an unknown/disabled game prompt. PresenceName is
// percent-encoded on the wire. When NameKey is set the name travels by
// reference instead and PresenceName is left out of the id.
type UnknownCallback struct {
	Action       Intent
	GuildID      string
	PresenceName string
	NameKey      string
}

// marks the by-reference form: intent|guild|key|r
const nameRefTag = "r"

func (c UnknownCallback) Intent() Intent { return c.Action }

func (c UnknownCallback) fields() []string {
	if c.NameKey != "" {
		return []string{c.GuildID, c.NameKey, nameRefTag}
	}
	return []string{c.GuildID, url.PathEscape(c.PresenceName)}
}

// FitsInline reports whether the presence name can be carried in the id
// without shortening.
func (c UnknownCallback) FitsInline() bool {
	c.NameKey = ""
	return len(join(c)) <= MaxCallbackLen
}

// SessionCallback targets a paged board stored under Key. Arg is the
// per-item id (game id, request id) when the control needs one.
type SessionCallback struct {
	Action Intent
	Key    string
	Arg    string
}

func (c SessionCallback) Intent() Intent { return c.Action }

func (c SessionCallback) fields() []string {
	if c.Arg == "" {
		return []string{c.Key}
	}
	return []string{c.Key, c.Arg}
}

// EncodeCallback renders c as "<intent>|field|field...", capped at
// MaxCallbackLen. Inline presence names are shortened until the encoded id
// fits; callers that need the exact name use NameKey.
func EncodeCallback(c Callback) string {
	if uc, ok := c.(UnknownCallback); ok {
		return encodeUnknown(uc)
	}
	return capLen(join(c))
}

func encodeUnknown(c UnknownCallback) string {
	if c.NameKey != "" {
		return capLen(join(c))
	}
	name := c.PresenceName
	for {
		out := join(UnknownCallback{Action: c.Action, GuildID: c.GuildID, PresenceName: name})
		if len(out) <= MaxCallbackLen || name == "" {
			return capLen(out)
		}
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
}

func join(c Callback) string {
	return string(c.Intent()) + callbackSep + strings.Join(c.fields(), callbackSep)
}

func capLen(s string) string {
	if len(s) > MaxCallbackLen {
		return s[:MaxCallbackLen]
	}
	return s
}

// DecodeCallback parses a custom id produced by EncodeCallback.
func DecodeCallback(raw string) (Callback, error) {
	parts := strings.Split(raw, callbackSep)
	intent := Intent(parts[0])
	fam, ok := intentFamilies[intent]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %q", ErrBadCallback, parts[0])
	}
	args := parts[1:]
	for _, a := range args {
		if a == "" {
			return nil, fmt.Errorf("%w: empty field in %q", ErrBadCallback, raw)
		}
	}

	switch fam {
	case familyShare:
		if len(args) != 3 && len(args) != 4 {
			return nil, fmt.Errorf("%w: share callback wants 3-4 fields, got %d", ErrBadCallback, len(args))
		}
		cb := ShareCallback{
			Action: intent,
			Key:    ShareKey{GuildID: args[0], UserID: args[1], GameID: args[2]},
		}
		if len(args) == 4 {
			kind, ok := ParseDetailKind(args[3])
			if !ok {
				return nil, fmt.Errorf("%w: detail kind %q", ErrBadCallback, args[3])
			}
			cb.Kind = kind
		}
		return cb, nil

	case familyUnknown:
		if len(args) == 3 && args[2] == nameRefTag {
			return UnknownCallback{Action: intent, GuildID: args[0], NameKey: args[1]}, nil
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: unknown-game callback wants 2 fields, got %d", ErrBadCallback, len(args))
		}
		name, err := url.PathUnescape(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: presence name: %v", ErrBadCallback, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty presence name", ErrBadCallback)
		}
		return UnknownCallback{Action: intent, GuildID: args[0], PresenceName: name}, nil

	default:
		if len(args) != 1 && len(args) != 2 {
			return nil, fmt.Errorf("%w: session callback wants 1-2 fields, got %d", ErrBadCallback, len(args))
		}
		cb := SessionCallback{Action: intent, Key: args[0]}
		if len(args) == 2 {
			cb.Arg = args[1]
		}
		return cb, nil
	}
}
