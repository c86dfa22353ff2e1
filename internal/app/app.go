package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sharetube/syncspace/internal/controller"
	"github.com/sharetube/syncspace/internal/musiccache"
	"github.com/sharetube/syncspace/internal/repository/connection/inmemory"
	roomRedis "github.com/sharetube/syncspace/internal/repository/room/redis"
	"github.com/sharetube/syncspace/internal/resolver"
	"github.com/sharetube/syncspace/internal/service/room"
	"github.com/sharetube/syncspace/internal/workerpool"
	"github.com/sharetube/syncspace/pkg/ctxlogger"
	"github.com/sharetube/syncspace/pkg/redisclient"
	"github.com/sharetube/syncspace/pkg/ytvideodata"
)

const (
	shutdownTimeout = 30 * time.Second
	songExpire      = 14 * 24 * time.Hour
)

type AppConfig struct {
	Secret              string        `json:"-"`
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	LogLevel            string        `json:"log_level"`
	InstanceId          string        `json:"instance_id"`
	QueueLimit          int           `json:"queue_limit"`
	BroadcastInterval   time.Duration `json:"broadcast_interval"`
	SeekSettleDelay     time.Duration `json:"seek_settle_delay"`
	VoteCooldown        time.Duration `json:"vote_cooldown"`
	Workers             int           `json:"workers"`
	WorkerTaskTimeout   time.Duration `json:"worker_task_timeout"`
	RedisPort           int           `json:"redis_port"`
	RedisHost           string        `json:"redis_host"`
	RedisPassword       string        `json:"-"`
	SpotifyClientID     string        `json:"spotify_client_id"`
	SpotifyClientSecret string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.LogLevel, validation.Required, validation.In("DEBUG", "INFO", "WARN", "ERROR")),
		validation.Field(&cfg.QueueLimit, validation.Required, validation.Min(1)),
		validation.Field(&cfg.BroadcastInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.SeekSettleDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.VoteCooldown, validation.Min(time.Duration(0))),
		validation.Field(&cfg.Workers, validation.Required, validation.Min(1)),
		validation.Field(&cfg.WorkerTaskTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.RedisHost, validation.Required),
		validation.Field(&cfg.RedisPort, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type app struct {
	logger      *slog.Logger
	server      *http.Server
	roomService interface{ Close() }
	pool        *workerpool.Pool
	closeConns  func()
}

// newApp wires every component on top of an existing Redis client.
func newApp(ctx context.Context, cfg *AppConfig, logger *slog.Logger, rc *redis.Client) *app {
	resolvers := []resolver.Resolver{resolver.NewYoutube(ytvideodata.New(nil))}
	spotify, err := resolver.NewSpotify(ctx, resolver.SpotifyConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	})
	switch {
	case err == nil:
		resolvers = append(resolvers, spotify)
	case errors.Is(err, resolver.ErrResolverDisabled):
		logger.InfoContext(ctx, "spotify resolver disabled")
	default:
		logger.WarnContext(ctx, "failed to create spotify resolver", "error", err)
	}
	registry := resolver.NewRegistry(resolvers...)

	cache := musiccache.New(rc, logger, registry.Sources(), &musiccache.Config{AutoPromote: true})
	pool := workerpool.New(registry, logger, workerpool.Config{
		Workers:     cfg.Workers,
		TaskTimeout: cfg.WorkerTaskTimeout,
	})

	roomRepo := roomRedis.NewRepo(rc, logger, songExpire)
	connRepo := inmemory.NewRepo(logger)
	roomService := room.NewService(roomRepo, connRepo, cache, pool, registry, logger, room.Config{
		Secret:            cfg.Secret,
		QueueLimit:        cfg.QueueLimit,
		BroadcastInterval: cfg.BroadcastInterval,
		SeekSettleDelay:   cfg.SeekSettleDelay,
		VoteCooldown:      cfg.VoteCooldown,
		InstanceId:        cfg.InstanceId,
	})

	controller := controller.NewController(roomService, cache, pool, rc, logger)

	return &app{
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           controller.GetMux(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		roomService: roomService,
		pool:        pool,
		closeConns: func() {
			for _, spaceId := range connRepo.SpaceIds() {
				for _, conn := range connRepo.GetSpaceConns(spaceId) {
					conn.Close()
				}
			}
		},
	}
}

// shutdown stops the HTTP server, then closes live sockets so their read
// loops detach, then stops playback loops and workers.
func (a *app) shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.closeConns()
	a.roomService.Close()
	a.pool.Close()

	return err
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	a := newApp(ctx, cfg, logger, rc)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting server", "address", a.server.Addr, "instance_id", cfg.InstanceId)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(gctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
