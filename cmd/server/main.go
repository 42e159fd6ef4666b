package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/api"
	"github.com/actionable-app/actionable/internal/app"
	iauth "github.com/actionable-app/actionable/internal/auth"
	"github.com/actionable-app/actionable/internal/auth/providers"
	"github.com/actionable-app/actionable/internal/cache"
	"github.com/actionable-app/actionable/internal/database"
	"github.com/actionable-app/actionable/internal/notify"
	"github.com/actionable-app/actionable/internal/realtime"
	"github.com/actionable-app/actionable/internal/services"
	"github.com/actionable-app/actionable/internal/storage"
	"github.com/actionable-app/actionable/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("actionable-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	// Key-value store: redis when configured and reachable, database otherwise.
	var kv cache.Store = cache.NewDatabaseStore(db)
	if cfg.Cache.Redis.Enabled {
		redisStore, redisErr := cache.NewRedisStore(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Timeout:  cfg.Cache.Redis.Timeout,
		})
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to database store", zap.Error(redisErr))
		} else {
			kv = redisStore
			defer redisStore.Close()
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionSvc, err := iauth.NewSessionService(db, jwtService,
		iauth.WithRefreshTokenTTL(cfg.Auth.Session.RefreshTTL))
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	localProvider, err := providers.NewLocalProvider(db)
	if err != nil {
		return fmt.Errorf("initialise local provider: %w", err)
	}

	accounts, err := iauth.NewAccountService(db)
	if err != nil {
		return fmt.Errorf("initialise account service: %w", err)
	}

	var googleProvider *providers.GoogleProvider
	if cfg.Auth.Google.Enabled {
		googleProvider, err = providers.NewGoogleProvider(ctx, providers.GoogleConfig{
			ClientID:     cfg.Auth.Google.ClientID,
			ClientSecret: cfg.Auth.Google.ClientSecret,
			RedirectURL:  cfg.Auth.Google.RedirectURL,
		}, kv)
		if err != nil {
			return fmt.Errorf("initialise google provider: %w", err)
		}
	}

	avatars, err := storage.NewBucket(cfg.Storage.AvatarsPath, cfg.Storage.PublicURL)
	if err != nil {
		return fmt.Errorf("initialise avatar bucket: %w", err)
	}

	hub := realtime.NewHub()

	tokenSvc, err := services.NewPushTokenService(db)
	if err != nil {
		return fmt.Errorf("initialise push token service: %w", err)
	}

	notifySvc, err := buildNotifyService(ctx, cfg, kv, tokenSvc)
	if err != nil {
		return err
	}
	defer notifySvc.Stop()

	summaryJob, err := notify.NewSummaryJob(db)
	if err != nil {
		return fmt.Errorf("initialise summary job: %w", err)
	}
	if cfg.Notifications.DailySummary {
		if err := summaryJob.Start(); err != nil {
			return fmt.Errorf("start summary job: %w", err)
		}
		defer summaryJob.Stop()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:       db,
		Config:   cfg,
		JWT:      jwtService,
		Sessions: sessionSvc,
		Local:    localProvider,
		Google:   googleProvider,
		Accounts: accounts,
		KV:       kv,
		Hub:      hub,
		Notify:   notifySvc,
		Avatars:  avatars,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErrs error
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdownErrs = multierr.Append(shutdownErrs, fmt.Errorf("graceful shutdown: %w", err))
	}
	if err, ok := <-serverErr; ok && err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, fmt.Errorf("server error: %w", err))
	}
	if shutdownErrs != nil {
		return shutdownErrs
	}

	log.Info("server stopped gracefully")
	return nil
}

func buildNotifyService(ctx context.Context, cfg *app.Config, kv cache.Store, tokens *services.PushTokenService) (*notify.Service, error) {
	var svc *notify.Service

	scheduler := notify.NewLocalScheduler(func(req notify.Request) {
		if svc != nil {
			svc.Deliverer()(req)
		}
	})

	svc, err := notify.NewService(notify.Config{
		Scheduler: scheduler,
		KV:        kv,
		Tokens:    tokens,
		Sandboxed: cfg.Notifications.Sandboxed,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise notify service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start notify service: %w", err)
	}
	return svc, nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
