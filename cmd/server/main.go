// Command server runs the SMS/RCS messaging API.
//
// @title       SMS/RCS Messaging API
// @version     1.0
// @description Send SMS and RCS messages, track delivery status from provider callbacks, and manage contacts.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sms-backend/internal/cache"
	"github.com/tbourn/go-sms-backend/internal/config"
	httpapi "github.com/tbourn/go-sms-backend/internal/http"
	"github.com/tbourn/go-sms-backend/internal/observability"
	"github.com/tbourn/go-sms-backend/internal/provider"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/services"
	"github.com/tbourn/go-sms-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.ConfigureLogger("info", false, nil)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, nil)
	gin.SetMode(sysutil.GinMode(cfg.GinMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Warn().Err(err).Msg("otel disabled")
		shutdownOTel = func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, sysutil.StorageTarget(cfg.DBDriver, cfg.DBPath, cfg.DBDSN))
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}

	var replay cache.ReplayCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		perr := rdb.Ping(pctx).Err()
		cancel()
		if perr != nil {
			log.Warn().Err(perr).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; replay cache disabled")
		} else {
			replay = cache.NewRedisReplayCache(rdb, cfg.CallbackDedupTTL)
		}
	}

	var sender services.Provider
	if missing := cfg.MissingTwilioVars(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("provider not configured; sends will return 503")
	} else {
		sender = provider.NewClient(provider.Config{
			AccountSID:        cfg.Twilio.AccountSID,
			AuthToken:         cfg.Twilio.AuthToken,
			DefaultFrom:       cfg.Twilio.PhoneNumber,
			BaseURL:           cfg.Twilio.BaseURL,
			Timeout:           cfg.Twilio.Timeout,
			StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
		})
	}

	r := gin.New()
	if err := httpapi.RegisterRoutes(r, db, sender, replay, cfg); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db_driver", cfg.DBDriver).
			Bool("replay_cache", replay != nil).
			Bool("swagger", cfg.SwaggerEnabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
