package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	// DiscordGuild scopes command registration to one guild; empty registers globally.
	DiscordGuild string
	HTTPAddr     string // empty disables the ops server

	LogLevel  string
	LogPretty bool

	PromptCooldown   time.Duration
	RolePrefix       string
	UXSessionTTL     time.Duration
	PendingShareTTL  time.Duration
	PendingShareMax  int
	PresenceDebounce time.Duration
	AutoGrantRole    bool
	ClickCooldown    time.Duration

	// janitor
	StaleInFlightAfter time.Duration
}

// MustLoad is Load that exits on error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	return cfg
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:  getenv("DATABASE_URL", ""),
		DiscordToken: getenv("DISCORD_BOT_TOKEN", ""),
		DiscordGuild: getenv("DISCORD_GUILD_ID", ""),
		HTTPAddr:     getenvAllowEmpty("HTTP_ADDR", ":8080"),

		LogLevel:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogPretty: getbool("LOG_PRETTY", false) || getbool("DEBUG_MODE", false),

		PromptCooldown:   time.Duration(getint("PROMPT_COOLDOWN_MINUTES", 30)) * time.Minute,
		RolePrefix:       getenvAllowEmpty("ROLE_PREFIX", "Playing: "),
		UXSessionTTL:     getdur("UX_SESSION_TTL", 15*time.Minute),
		PendingShareTTL:  getdur("PENDING_SHARE_TTL", 30*time.Minute),
		PendingShareMax:  getint("PENDING_SHARE_MAX", 10000),
		PresenceDebounce: getdur("PRESENCE_DEBOUNCE", 750*time.Millisecond),
		AutoGrantRole:    getbool("AUTO_GRANT_ROLE", true),
		ClickCooldown:    getdur("CLICK_COOLDOWN", time.Second),

		StaleInFlightAfter: getdur("STALE_IN_FLIGHT_AFTER", 24*time.Hour),
	}

	if cfg.DiscordToken == "" {
		return cfg, errors.New("missing env DISCORD_BOT_TOKEN")
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("missing env DATABASE_URL")
	}
	if cfg.PromptCooldown < 0 {
		return cfg, errors.New("PROMPT_COOLDOWN_MINUTES must be >= 0")
	}
	if cfg.UXSessionTTL <= 0 || cfg.PendingShareTTL <= 0 {
		return cfg, errors.New("UX_SESSION_TTL and PENDING_SHARE_TTL must be positive")
	}
	if cfg.PendingShareMax < 1 {
		return cfg, fmt.Errorf("PENDING_SHARE_MAX must be >= 1, got %d", cfg.PendingShareMax)
	}
	if cfg.PresenceDebounce < 0 || cfg.ClickCooldown < 0 {
		return cfg, errors.New("PRESENCE_DEBOUNCE and CLICK_COOLDOWN must be >= 0")
	}
	return cfg, nil
}

// BotToken returns the token with the "Bot " prefix discordgo expects.
func (c Config) BotToken() string {
	t := strings.TrimSpace(c.DiscordToken)
	if strings.HasPrefix(strings.ToLower(t), "bot ") {
		return t
	}
	return "Bot " + t
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// getenvAllowEmpty keeps an explicitly empty value.
func getenvAllowEmpty(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
