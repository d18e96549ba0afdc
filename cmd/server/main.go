package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Ravindra2377/KPR/internal/api"
	"github.com/Ravindra2377/KPR/internal/collab"
	"github.com/Ravindra2377/KPR/internal/config"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/notifications"
	"github.com/Ravindra2377/KPR/internal/pods"
	"github.com/Ravindra2377/KPR/internal/ratelimit"
	"github.com/Ravindra2377/KPR/internal/rooms"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/stats"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file")
	}

	if err := run(log, parseParams()); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func parseParams() config.Params {
	var (
		p              config.Params
		allowedOrigins stringSliceFlag
	)
	flag.StringVar(&p.ServerAddr, "addr", env("KPR_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&p.Store, "store", env("KPR_STORE", database.StorePostgres), "store backend: postgres, mongo or memory")
	flag.StringVar(&p.DatabaseDSN, "dsn", env("KPR_DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=kpr sslmode=disable"), "postgres connection string")
	flag.StringVar(&p.MongoURI, "mongo-uri", env("KPR_MONGO_URI", "mongodb://localhost:27017"), "mongo connection uri")
	flag.StringVar(&p.MongoDB, "mongo-db", env("KPR_MONGO_DB", "kpr"), "mongo database name")
	flag.StringVar(&p.SigningSecret, "signing-key", os.Getenv("KPR_SIGNING_KEY"), "base64 encoded jwt signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&p.RedisAddr, "redis-addr", os.Getenv("KPR_REDIS_ADDR"), "redis address for rate limiting, in-memory when empty")
	flag.StringVar(&p.RedisPassword, "redis-password", os.Getenv("KPR_REDIS_PASSWORD"), "redis password")
	flag.IntVar(&p.RedisDB, "redis-db", envInt("KPR_REDIS_DB", 0), "redis database")
	flag.DurationVar(&p.StoreTimeout, "store-timeout", envDuration("KPR_STORE_TIMEOUT", 5*time.Second), "timeout for a single store call")
	flag.StringVar(&p.SentryDSN, "sentry-dsn", os.Getenv("KPR_SENTRY_DSN"), "sentry dsn, reporting disabled when empty")
	flag.StringVar(&p.LogLevel, "log-level", env("KPR_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	p.AllowedOrigins = allowedOrigins
	if len(p.AllowedOrigins) == 0 && os.Getenv("KPR_ALLOWED_ORIGINS") != "" {
		p.AllowedOrigins = strings.Split(os.Getenv("KPR_ALLOWED_ORIGINS"), ",")
	}
	return p
}

// run owns every resource it opens, so deferred cleanup always happens
// before the process exits.
func run(log *logrus.Logger, p config.Params) error {
	cfg, err := config.NewConfig(p)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	repo, err := database.Open(openCtx, database.Options{
		Store:    cfg.Store,
		DSN:      cfg.DatabaseDSN,
		MongoURI: cfg.MongoURI,
		MongoDB:  cfg.MongoDB,
	})
	cancelOpen()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("store close")
		}
	}()

	su := stats.NewStatsUpdater()
	su.Run()
	defer su.Stop()

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rl, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			return fmt.Errorf("redis limiter: %w", err)
		}
		defer rl.Close()
		limiter = rl
	} else {
		ml := ratelimit.NewMemoryLimiter()
		ml.Run()
		defer ml.Stop()
		limiter = ml
	}
	gate := ratelimit.NewGate(limiter, ratelimit.DefaultPolicies(), su, log)

	hub := server.NewHub(log, su)
	dispatcher := hub.Dispatcher()

	notes := notifications.NewService(repo, dispatcher, log, cfg.StoreTimeout)
	roomSvc := rooms.NewService(repo, dispatcher, log, cfg.StoreTimeout)
	hub.SetHandler(roomSvc)
	podSvc := pods.NewService(repo, notes, dispatcher, roomSvc, gate, log, cfg.StoreTimeout)
	collabSvc := collab.NewService(repo, notes, roomSvc, podSvc, gate, log, cfg.StoreTimeout)

	go hub.Run()

	srv := api.NewApp(log, hub, repo, api.Services{
		Notifications: notes,
		Rooms:         roomSvc,
		Pods:          podSvc,
		Collab:        collabSvc,
	}, su.Handler(), cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigs:
		log.Infof("received signal: %s", sig)
	case serveErr = <-errCh:
		log.WithError(serveErr).Error("server stopped")
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown")
	}

	log.Info("shutting down hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		log.WithError(err).Error("hub shutdown")
	}

	log.Info("shutdown complete")
	return serveErr
}
