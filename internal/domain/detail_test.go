package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDetail(t *testing.T) {
	cases := []struct {
		name    string
		kind    DetailKind
		in      string
		want    string
		wantErr string
	}{
		{"ip with port", DetailServerIP, "1.2.3.4:27015", "1.2.3.4:27015", ""},
		{"hostname no port", DetailServerIP, "play.example.com", "play.example.com", ""},
		{"max port", DetailServerIP, "host:65535", "host:65535", ""},
		{"port out of range", DetailServerIP, "host:99999", "", "Use hostname[:port] or ip[:port]."},
		{"six digit port", DetailServerIP, "host:100000", "", "Use hostname[:port] or ip[:port]."},
		{"one digit port", DetailServerIP, "host:1", "", "Use hostname[:port] or ip[:port]."},
		{"spaces rejected", DetailServerIP, "not a host !!!", "", "Use hostname[:port] or ip[:port]."},
		{"steam ok", DetailSteam, "  76561198000000000 ", "76561198000000000", ""},
		{"steam short", DetailSteam, "12345", "", "That Steam ID looks too short."},
		{"steam boundary", DetailSteam, "123456", "123456", ""},
		{"empty", DetailSteam, "   ", "", "Value cannot be empty."},
		{"server name ok", DetailServerName, "Chill Squad NA #2", "Chill Squad NA #2", ""},
		{"server name max", DetailServerName, strings.Repeat("x", 80), strings.Repeat("x", 80), ""},
		{"server name too long", DetailServerName, strings.Repeat("x", 81), "", "Server name is too long."},
		{"none ignores value", DetailNone, "whatever", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateDetail(tc.kind, tc.in)
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got value %q", tc.wantErr, got)
				}
				if !errors.Is(err, ErrInvalidDetail) {
					t.Fatalf("error should wrap ErrInvalidDetail: %v", err)
				}
				if err.Error() != tc.wantErr {
					t.Fatalf("error = %q, want %q", err.Error(), tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("value = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetailLines(t *testing.T) {
	if got := PreviewLine(DetailSteam, "abc123"); got != "Steam ID: `abc123`" {
		t.Fatalf("preview steam = %q", got)
	}
	if got := PreviewLine(DetailServerName, "EU #1"); got != "Server: **EU #1**" {
		t.Fatalf("preview server = %q", got)
	}
	if got := PreviewLine(DetailServerIP, "1.2.3.4:27015"); got != "Join: `1.2.3.4:27015`" {
		t.Fatalf("preview ip = %q", got)
	}
	if got := AnnouncementLine(DetailNone, "x"); got != "" {
		t.Fatalf("announcement none = %q", got)
	}
	if got := SessionLine(DetailNone, ""); got != "(none)" {
		t.Fatalf("session none = %q", got)
	}
}

func TestParseDetailKind(t *testing.T) {
	for _, k := range DetailKinds {
		got, ok := ParseDetailKind(string(k))
		if !ok || got != k {
			t.Fatalf("ParseDetailKind(%q) = %q, %v", k, got, ok)
		}
	}
	if _, ok := ParseDetailKind("steam"); ok {
		t.Fatalf("lowercase kind should not parse")
	}
}
