// Package arenabuilder wires the arena dependency graph from configuration.
package arenabuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/identity"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Store       game.Store
	Machine     *game.Machine
	Registry    *registry.Registry
	Lobby       *lobby.Broadcaster
	Coordinator *session.Coordinator
	Server      *transport.Server

	redis   *redis.Client
	archive *archive.Repository
}

// New builds every component. REDIS_URL and DATABASE_URL are optional: without them the
// in-memory store is used and finished games are not archived.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	if cfg.RedisURL != "" {
		rdb, err := store.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		d.redis = rdb
		d.Store = store.NewRedis(rdb, store.WithTTL(cfg.RoomTTL))
		logger.Info("store_redis", zap.Duration("ttl", cfg.RoomTTL))
	} else {
		d.Store = store.NewMemory()
		logger.Warn("store_memory", zap.String("reason", "REDIS_URL not set; rooms are lost on restart"))
	}

	opts := []game.Option{game.WithLogger(logger.Named("game"))}
	if cfg.DatabaseURL != "" {
		repo, err := archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		d.archive = repo
		opts = append(opts, game.WithArchiver(repo))
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var resolver identity.Resolver
	switch cfg.AuthMode {
	case config.AuthRemote:
		resolver = identity.NewRemoteResolver(cfg.AuthBaseURL, identity.WithTimeout(cfg.AuthTimeout))
	default:
		resolver = identity.NewHeaderResolver(cfg.AuthHeader, cfg.AuthQuery)
	}

	d.Registry = registry.New()
	d.Lobby = lobby.New(d.Store, d.Registry, logger.Named("lobby"))
	fanout := session.NewFanout(d.Registry, d.Lobby, logger.Named("fanout"))
	opts = append(opts, game.WithPublisher(fanout))
	d.Machine = game.NewMachine(d.Store, rules.New(), opts...)
	d.Coordinator = session.NewCoordinator(d.Machine, d.Registry, d.Lobby, catalog, logger.Named("session"), session.Options{Verbose: cfg.Verbose})
	d.Server = transport.NewServer(d.Coordinator, resolver, transport.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		PingInterval:   cfg.PingInterval,
	}, logger.Named("ws"))
	return d, nil
}

// Close releases external connections.
func (d *Deps) Close() error {
	var errs []error
	if d.archive != nil {
		errs = append(errs, d.archive.Close())
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	return errors.Join(errs...)
}
