// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/daemon"
	"github.com/parleyhq/parley/internal/health"
	plog "github.com/parleyhq/parley/internal/log"
	"github.com/parleyhq/parley/internal/mail"
	"github.com/parleyhq/parley/internal/otp"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/ws"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenAddr := flag.String("listen", "", "listen address override (e.g. :8001)")
	envFile := flag.String("env-file", "", "path to a dotenv file loaded before configuration")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	config.LoadDotenv(*envFile)

	// Configure logger with safe defaults until config is loaded
	plog.Configure(plog.Config{
		Level:   "info",
		Service: "parley",
		Version: version,
	})

	logger := plog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${PARLEY_DATA}/config.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("PARLEY_DATA", "/var/lib/parley"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	// Load configuration with precedence: ENV > File > Defaults
	cfg, err := config.Load(effectiveConfigPath, version)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// The flag outranks both environment and file.
	if strings.TrimSpace(*listenAddr) != "" {
		cfg.ListenAddr = strings.TrimSpace(*listenAddr)
	}

	// Re-configure logger with loaded configuration
	plog.Configure(plog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.data_dir_failed").
			Str("dir", cfg.DataDir).
			Msg("failed to create data directory")
	}

	db, err := store.Open(cfg.DBPath, store.DefaultConfig())
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.db_open_failed").
			Str("path", cfg.DBPath).
			Msg("failed to open database")
	}

	redisClient, err := channel.NewClient(ctx, channel.ClientConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.redis_failed").
			Str("addr", cfg.RedisAddr).
			Msg("failed to connect to redis")
	}

	users := store.NewUsers(db)
	rooms := store.NewRooms(db)
	messages := store.NewMessages(db)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	otpStore := otp.NewStore(redisClient, cfg.OTPTTL, cfg.OTPDigits, plog.WithComponent("otp"))

	var mailer mail.Mailer
	switch cfg.MailDriver {
	case "smtp":
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, plog.WithComponent("mail"))
	default:
		mailer = mail.LogMailer{Logger: plog.WithComponent("mail")}
	}

	bus := channel.NewBus(redisClient, plog.WithComponent("channel"))
	hub := ws.NewHub(bus, cfg.BroadcastWorkers, plog.WithComponent("hub"))
	sockets := ws.NewService(hub, tokens, rooms, messages, cfg.HistoryLimit, cfg.AllowedOrigins, plog.WithComponent("ws"))

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewRedisChecker(redisClient))
	healthMgr.RegisterChecker(health.NewDatabaseChecker(db))
	healthMgr.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))

	server := api.New(api.Deps{
		Config:   cfg,
		Logger:   plog.WithComponent("api"),
		Users:    users,
		Rooms:    rooms,
		Messages: messages,
		Tokens:   tokens,
		OTP:      otpStore,
		Mailer:   mailer,
		Hub:      hub,
		Sockets:  sockets,
		Health:   healthMgr,
	})

	serverCfg := config.ParseServerConfig(cfg)

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting parley")

	logger.Info().Msgf("→ Redis: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	logger.Info().Msgf("→ Database: %s", cfg.DBPath)
	logger.Info().Msgf("→ Mail driver: %s", cfg.MailDriver)
	logger.Info().Msgf("→ Broadcast workers: %d", cfg.BroadcastWorkers)
	if cfg.MetricsListen != "" {
		logger.Info().Msgf("→ Metrics: %s", cfg.MetricsListen)
	}

	// With no config file the watcher still serves SIGHUP log-level reload.
	watchPath := effectiveConfigPath
	workers := []daemon.Worker{
		{Name: "broadcast-hub", Run: hub.Run},
		{Name: "config-watcher", Run: func(ctx context.Context) error {
			config.WatchLogLevel(ctx, watchPath, version)
			return nil
		}},
	}

	deps := daemon.Deps{
		Logger:      logger,
		APIHandler:  server.Router(),
		MetricsAddr: cfg.MetricsListen,
		Workers:     workers,
	}
	if cfg.MetricsListen != "" {
		deps.MetricsHandler = promhttp.Handler()
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})
	mgr.RegisterShutdownHook("database", func(ctx context.Context) error {
		return db.Close()
	})

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
