package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/auth"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/chat"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/config"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/mailbox"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/poller"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/processor"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/store"
)

func main() {
	authorizeAccount := flag.String("authorize", "", "run the interactive OAuth flow for the given account ID, then exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	// OAuth client credentials are needed both for authorization and polling
	tokens, err := auth.NewTokenManager(cfg.CredentialsPath, cfg.OAuthCallbackPort, logger)
	if err != nil {
		logger.Error("failed to load oauth credentials", "error", err)
		os.Exit(1)
	}

	if *authorizeAccount != "" {
		runAuthorize(cfg, tokens, logger, *authorizeAccount)
		return
	}

	logger.Info("starting gmail forwarder",
		"accounts", len(cfg.Accounts), "chat_backend", cfg.ChatBackend)

	// Open dedup store
	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open dedup store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("dedup store ready", "path", cfg.DatabasePath)

	// Create components
	fmtr := formatter.New(formatter.Options{
		IncludeAccountHeader:  cfg.IncludeAccountHeader,
		BodyMaxChars:          cfg.BodyMaxChars,
		IncludeGmailPermalink: cfg.IncludeGmailPermalink,
	})

	var poster chat.Poster
	switch cfg.ChatBackend {
	case "telegram":
		poster, err = chat.NewTelegramPoster(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Error("failed to create telegram poster", "error", err)
			os.Exit(1)
		}
	default:
		poster = chat.NewSlackPoster(cfg.SlackBotToken, cfg.SlackChannelID, logger)
	}

	clients := make([]processor.MailClient, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		clients = append(clients, mailbox.NewClient(account, tokens, cfg.DoneLabel, logger))
	}

	proc := processor.New(processor.Deps{
		Config:  cfg,
		Clients: clients,
		Store:   st,
		Fmtr:    fmtr,
		Poster:  poster,
		Logger:  logger,
	})
	if err := proc.Initialize(ctx); err != nil {
		logger.Error("failed to initialize processor", "error", err)
		os.Exit(1)
	}

	// Start polling
	pol := poller.New(proc, st, cfg.PollInterval, cfg.RetentionDays, logger)
	pol.Start()

	// Wait for shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", "signal", sig)
	pol.Stop()
	logger.Info("forwarder stopped")
}

func runAuthorize(cfg *config.Config, tokens *auth.TokenManager, logger *slog.Logger, accountID string) {
	for _, account := range cfg.Accounts {
		if account.ID != accountID {
			continue
		}
		if err := tokens.Authorize(context.Background(), account.Name, account.TokenPath); err != nil {
			logger.Error("authorization failed", "account", accountID, "error", err)
			os.Exit(1)
		}
		return
	}
	logger.Error("unknown account id", "account", accountID)
	os.Exit(1)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
