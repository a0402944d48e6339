package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	discordrouter "github.com/stlmattjohnson/gameshare-bot/internal/adapters/discord"
	"github.com/stlmattjohnson/gameshare-bot/internal/adapters/httpapi"
	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
	"github.com/stlmattjohnson/gameshare-bot/internal/catalog"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/config"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/logging"
	"github.com/stlmattjohnson/gameshare-bot/internal/infra/storage"
)

func main() {
	cfg := config.MustLoad()
	log := logging.Setup(cfg.LogLevel, cfg.LogPretty)

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Msg("✅ DB ready and migrated")

	// Repos
	ledgerRepo := storage.NewLedgerRepo(db)
	guildRepo := storage.NewGuildRepo(db)
	customRepo := storage.NewCustomGameRepo(db)
	userRepo := storage.NewUserRepo(db)
	sessionRepo := storage.NewSessionRepo(db)
	requestRepo := storage.NewRequestRepo(db)

	games := catalog.NewResolver(catalog.MustLoad(), customRepo)

	// Discord session (platform collaborators need it before the services)
	s, err := discordgo.New(cfg.BotToken())
	if err != nil {
		log.Fatal().Err(err).Msg("discord session")
	}
	s.Identify.Intents = discordrouter.Intents
	platform := discordrouter.NewPlatform(s)

	// Services
	ledger := service.NewLedger(ledgerRepo, cfg.PromptCooldown)
	pending := service.NewPendingShares(cfg.PendingShareMax, cfg.PendingShareTTL)

	shareSvc := service.NewShareService(log, service.ShareDeps{
		Ledger: ledger, Pending: pending, Games: games, Guilds: guildRepo, Users: userRepo,
		Sessions: sessionRepo, Messages: platform, Roles: platform, AutoGrantRole: cfg.AutoGrantRole,
	})
	requestSvc := service.NewRequestService(log, service.RequestDeps{
		Ledger: ledger, Games: games, Guilds: guildRepo, Customs: customRepo, Requests: requestRepo,
		Messages: platform, Roles: platform, RolePrefix: cfg.RolePrefix, BoardTTL: cfg.UXSessionTTL,
	})
	guildSvc := service.NewGuildService(log, service.GuildDeps{
		Games: games, Guilds: guildRepo, Messages: platform, Roles: platform,
		RolePrefix: cfg.RolePrefix, BoardTTL: cfg.UXSessionTTL,
	})
	userSvc := service.NewUserService(log, service.UserDeps{
		Ledger: ledger, Pending: pending, Games: games, Guilds: guildRepo, Users: userRepo,
		Roles: platform, BoardTTL: cfg.UXSessionTTL,
	})
	sessionSvc := service.NewSessionService(log, sessionRepo, games, platform)
	presenceSvc := service.NewPresenceService(log, service.PresenceDeps{
		Ledger: ledger, Games: games, Guilds: guildRepo, Users: userRepo,
		Share: shareSvc, Requests: requestSvc, Sessions: sessionSvc, Debounce: cfg.PresenceDebounce,
	})
	reactionSvc := service.NewReactionService(log, sessionRepo, platform, platform)

	// Router
	r := discordrouter.NewRouter(s, log, discordrouter.Services{
		Share:     shareSvc,
		Requests:  requestSvc,
		Guilds:    guildSvc,
		Users:     userSvc,
		Sessions:  sessionSvc,
		Presence:  presenceSvc,
		Reactions: reactionSvc,
	}, discordrouter.Options{GuildID: cfg.DiscordGuild, ClickCooldown: cfg.ClickCooldown})
	r.Handlers()

	if err := s.Open(); err != nil {
		log.Fatal().Err(err).Msg("discord open")
	}
	defer s.Close()
	log.Info().Str("user", s.State.User.Username).Str("id", s.State.User.ID).Msg("✅ connected")

	if err := r.Register(); err != nil {
		log.Fatal().Err(err).Msg("registering commands")
	}
	log.Info().Str("guild", cfg.DiscordGuild).Msg("✅ commands registered")

	// Ops HTTP
	web := httpapi.New(log, cfg.HTTPAddr, db, func() bool { return s.DataReady })
	go web.Start()

	// Wait for signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = web.Shutdown(ctx)
}
