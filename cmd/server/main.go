package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeq/internal/config"
	"codeq/internal/db"
	"codeq/internal/handlers"
	"codeq/internal/identity"
	"codeq/internal/logging"
	"codeq/internal/metrics"
	"codeq/internal/middleware"
	"codeq/internal/router"
	"codeq/internal/services"
	"codeq/internal/store"
	"codeq/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv)
	if envErr != nil {
		logger.Debug().Msg("no .env file found, using environment only")
	}

	if err := db.Init(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}
	if err := utils.RegisterValidators(); err != nil {
		logger.Fatal().Err(err).Msg("register validators failed")
	}
	if cfg.MetricsEnabled {
		metrics.MustRegister(prometheus.DefaultRegisterer)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("server setup failed")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.Port).Str("acceptance_policy", cfg.AcceptancePolicy).Msg("codeq server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func buildEngine(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*gin.Engine, error) {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	policy, err := services.NewAcceptancePolicy(cfg.AcceptancePolicy)
	if err != nil {
		return nil, err
	}
	voting := services.NewVotingService(store.NewVoteStore(db.DB), policy, logger)
	directory := services.NewUserDirectory(store.NewUserStore(db.DB), logger)

	ranking := services.NewRankingService(db.DB, logger)
	ranking.Start(ctx)

	tags, err := handlers.NewTagCatalog(db.DB)
	if err != nil {
		return nil, err
	}

	var google *identity.GoogleProvider
	if cfg.GoogleEnabled() {
		google = identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	if cfg.MetricsEnabled {
		r.Use(metrics.Middleware())
		r.GET("/metrics", metrics.Handler())
	}

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.AppEnv != "dev",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("codeq_session", sessionStore))
	r.Use(middleware.LoadUser(identity.NewSessionProvider(), directory, logger))

	questions := handlers.NewQuestionHandler(db.DB, voting, ranking, tags, logger)
	router.RegisterRoutes(r, router.Handlers{
		Auth:         handlers.NewAuthHandler(db.DB, directory, google, cfg.SiteURL, logger),
		Questions:    questions,
		Answers:      handlers.NewAnswerHandler(db.DB, policy, ranking, logger),
		Votes:        handlers.NewVoteHandler(voting, logger),
		Saved:        handlers.NewSavedHandler(db.DB, ranking, logger),
		Users:        handlers.NewUserHandler(db.DB, questions, logger),
		Tags:         handlers.NewTagHandler(tags, logger),
		Notification: handlers.NewNotificationHandler(db.DB, logger),
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r, nil
}
