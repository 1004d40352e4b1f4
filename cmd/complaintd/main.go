// Command complaintd serves the complaint desk REST API.
//
// Configuration comes from the environment (and an optional .env file); see
// internal/config for the full list of variables.
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
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/tbourn/go-complaint-desk/internal/auth"
	"github.com/tbourn/go-complaint-desk/internal/cache"
	"github.com/tbourn/go-complaint-desk/internal/chatbot"
	"github.com/tbourn/go-complaint-desk/internal/config"
	httpapi "github.com/tbourn/go-complaint-desk/internal/http"
	"github.com/tbourn/go-complaint-desk/internal/jobs"
	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/search"
	"github.com/tbourn/go-complaint-desk/internal/services"
	"github.com/tbourn/go-complaint-desk/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	observability.SetupLogger(observability.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "complaintd",
	})

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("complaintd stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	deps := httpapi.Deps{Stats: cache.Noop{}}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisClient(cfg.Redis)
		defer rc.Close()
		rs := cache.NewRedis(rc, cfg.Redis.StatsTTL)
		if err := rs.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; stats cache disabled")
		} else {
			deps.Stats = rs
		}
	}

	bot := chatbot.Default()
	if cfg.Chatbot.RulesPath != "" {
		if bot, err = chatbot.Load(cfg.Chatbot.RulesPath); err != nil {
			return err
		}
	}
	if cfg.Chatbot.FAQEnabled {
		faq := chatbot.DefaultFAQ()
		if cfg.Chatbot.FAQPath != "" {
			if faq, err = search.Load(cfg.Chatbot.FAQPath); err != nil {
				return err
			}
		}
		bot = bot.WithFAQ(faq)
	}
	deps.Bot = bot

	if cfg.Auth.JWTSecret != "" {
		deps.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	} else {
		log.Warn().Msg("JWT_SECRET not set; callers are identified by X-User-ID")
	}

	sched := jobs.New(observability.Named("jobs"))
	if err := sched.Add(cfg.Jobs.PurgeSchedule, jobs.PurgeIdempotency(db)); err != nil {
		return err
	}
	convs := &services.ConversationService{DB: db, Bot: bot, TitleLocale: language.English}
	if err := sched.Add(cfg.Jobs.PurgeSchedule, jobs.EndIdleConversations(convs, cfg.Jobs.ConversationIdle)); err != nil {
		return err
	}
	sched.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, cfg)

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
			Str("db", cfg.DB.Driver).
			Bool("swagger", cfg.SwaggerEnabled).
			Bool("auth", deps.Tokens != nil).
			Str("version", sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(sctx); err != nil {
		log.Warn().Err(err).Msg("jobs did not stop in time")
	}
	return nil
}
