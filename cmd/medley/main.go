package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sydlexius/medley/internal/aggregate"
	"github.com/sydlexius/medley/internal/api"
	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/config"
	"github.com/sydlexius/medley/internal/database"
	"github.com/sydlexius/medley/internal/encryption"
	"github.com/sydlexius/medley/internal/event"
	"github.com/sydlexius/medley/internal/logging"
	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/provider"
	"github.com/sydlexius/medley/internal/provider/genius"
	"github.com/sydlexius/medley/internal/provider/itunes"
	"github.com/sydlexius/medley/internal/provider/spotify"
	"github.com/sydlexius/medley/internal/provider/youtube"
	"github.com/sydlexius/medley/internal/version"
	"github.com/sydlexius/medley/internal/watcher"
)

func main() {
	// Handle subcommands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-token":
			if err := hashToken(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "reset-credentials":
			if err := resetCredentials(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	configPath := resolveConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging via the logging Manager
	logManager, logger := logging.NewManager(loggingConfig(cfg))
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// Resolve encryption key: config > file > generate new
	encKey, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	encryptor, _, err := encryption.NewEncryptor(encKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	// Initialize provider infrastructure
	rateLimiters := provider.NewRateLimiterMap()
	providerSettings := provider.NewSettingsService(db, encryptor)
	providerRegistry := provider.NewRegistry()

	providerRegistry.Register(spotify.New(rateLimiters, providerSettings, logger))
	providerRegistry.Register(itunes.New(rateLimiters, logger))
	providerRegistry.Register(youtube.New(rateLimiters, providerSettings, logger))
	providerRegistry.Register(genius.New(rateLimiters, providerSettings, logger))

	// Initialize event bus
	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()
	event.LogSink(eventBus, logger)

	// Initialize matching and composition
	filter := match.NewFilter(logger, eventBus)
	composer := composite.NewComposer(providerSettings, logger, eventBus)
	aggregator := aggregate.New(providerRegistry, filter, composer, eventBus, logger)

	logger.Info("starting medley",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	// Set up HTTP router
	router := api.NewRouter(api.RouterDeps{
		Aggregator:       aggregator,
		ProviderSettings: providerSettings,
		ProviderRegistry: providerRegistry,
		Logger:           logger,
		BasePath:         cfg.Server.BasePath,
		APITokenHash:     cfg.Auth.APITokenHash,
		DefaultCountry:   cfg.Aggregate.DefaultCountry,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watch the config file and apply logging changes without a restart
	{
		reload := func(ctx context.Context) {
			next, err := config.Load(configPath)
			if err != nil {
				logger.Error("reloading config", "error", err)
				return
			}
			logManager.Reconfigure(loggingConfig(next))
			logger.Info("logging configuration reloaded")
		}
		watcherService := watcher.NewService(configPath, reload, logger)
		go watcherService.Start(ctx)
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func resolveConfigPath() string {
	if path := os.Getenv("MEDLEY_CONFIG_PATH"); path != "" {
		return path
	}
	return "/data/config.yaml"
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	}
}

// resolveEncryptionKey determines the encryption key to use.
// Priority: config/env value > key file next to the database > generate new.
func resolveEncryptionKey(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Encryption.Key != "" {
		return cfg.Encryption.Key, nil
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	keyFile := filepath.Join(dataDir, "encryption.key")

	// Try loading from file
	data, err := os.ReadFile(keyFile) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			logger.Debug("loaded encryption key from file", slog.String("path", keyFile))
			return key, nil
		}
	}

	// Generate a new key
	_, key, err := encryption.NewEncryptor("")
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}

	// Persist to file
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		logger.Warn("could not create data directory for encryption key",
			slog.String("path", dataDir), slog.Any("error", err))
		return key, nil
	}

	if err := os.WriteFile(keyFile, []byte(key+"\n"), 0o600); err != nil {
		logger.Warn("could not save encryption key to file",
			slog.String("path", keyFile), slog.Any("error", err))
	} else {
		logger.Warn("generated new encryption key -- back up this file",
			slog.String("path", keyFile))
	}

	return key, nil
}

// hashToken prints the bcrypt hash of a bearer token for use as
// auth.api_token_hash in the config file.
func hashToken(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: medley hash-token <token>")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

// resetCredentials clears all stored provider API keys. Useful when the
// encryption key has been lost and stored credentials can no longer be
// decrypted.
func resetCredentials() error {
	configPath := resolveConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	ctx := context.Background()

	res, err := db.ExecContext(ctx, "DELETE FROM settings WHERE key LIKE 'service.%.api_key'")
	if err != nil {
		return fmt.Errorf("clearing provider API keys: %w", err)
	}

	n, _ := res.RowsAffected()
	fmt.Printf("cleared %d stored provider credentials\n", n)
	return nil
}
