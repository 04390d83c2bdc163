package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/dbconfig"
	"github.com/touchtyped/typeduel/go/internal/match"
	"github.com/touchtyped/typeduel/go/internal/match/events"
	"github.com/touchtyped/typeduel/go/internal/match/gateway"
	"github.com/touchtyped/typeduel/go/internal/metrics"
	"github.com/touchtyped/typeduel/go/internal/rankings"
	"github.com/touchtyped/typeduel/go/internal/sessions"
)

type Services struct {
	Metrics     *metrics.Collectors
	Coordinator *match.Coordinator
	Relay       *events.Relay
	Rankings    *rankings.Service
	Match       *match.Service
	Gateway     *gateway.Service
	Sessions    *sessions.Service

	closers []func()
}

// setupServices wires storage → app → service for every component.
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	s := &Services{Metrics: metrics.New()}
	clock := clockwork.NewRealClock()
	dbCfg := dbconfig.NewConfigFromEnv()

	// Rankings
	repo, err := s.setupRankingsRepository(ctx, cfg, dbCfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	storeCfg := rankings.DefaultConfig()
	storeCfg.Capacity = cfg.Rankings.Capacity
	storeCfg.Clock = clock
	storeCfg.Metrics = s.Metrics
	store := rankings.NewStore(ctx, repo, storeCfg)
	s.Rankings = rankings.NewService(store)

	// Match
	matchCfg := match.Config{
		WaitTimeout:   cfg.Match.WaitTimeout,
		RoomTTL:       cfg.Match.RoomTTL,
		StrictScoring: cfg.Match.StrictScoring,
		Challenge:     match.RandomLetters(cfg.Match.ChallengeLength),
		Clock:         clock,
		Metrics:       s.Metrics,
	}
	s.Coordinator = match.NewCoordinator(matchCfg)
	s.Match = match.NewService(s.Coordinator)

	// Gateway
	gwCfg := gateway.DefaultConfig()
	gwCfg.ConnectionConfig.MaxMessagesPerSecond = cfg.Gateway.MaxMessagesPerSecond
	gwCfg.ConnectionConfig.MaxMessageSize = cfg.Gateway.MaxMessageSize
	s.Gateway = gateway.NewService(gwCfg, s.Coordinator, s.Metrics)
	s.Coordinator.Subscribe(s.Gateway)

	// Events
	publisher := s.setupPublisher(ctx, cfg)
	s.closers = append(s.closers, func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	})
	s.Relay = events.NewRelay(publisher, clock, events.DefaultQueueSize)
	s.Coordinator.Subscribe(s.Relay)

	// Sessions
	var archive sessions.SessionRepository
	if cfg.Sessions.Archive {
		db, err := setupDatabase(ctx, dbCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closeSQL(db)
		sessionRepo := sessions.NewRepository(db)
		if err := sessionRepo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		archive = sessionRepo
	}
	s.Sessions = sessions.NewService(sessions.NewApp(archive, store, clock, s.Metrics))

	log.Info().
		Str("rankings_backend", repo.Name()).
		Bool("session_archive", archive != nil).
		Bool("strict_scoring", cfg.Match.StrictScoring).
		Msg("services ready")

	return s, nil
}

func (s *Services) setupRankingsRepository(ctx context.Context, cfg *Config, dbCfg dbconfig.Config) (rankings.Repository, error) {
	switch cfg.Rankings.Backend {
	case "memory":
		return rankings.NewMemoryRepository(), nil
	case "postgres":
		pool, err := setupPool(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		s.closePool(pool)
		repo := rankings.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case "redis":
		client, err := setupRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.closeRedis(client)
		return rankings.NewRedisRepository(client, cfg.Rankings.RedisKey), nil
	case "file":
		return rankings.NewFileRepository(cfg.Rankings.File), nil
	default:
		return nil, fmt.Errorf("unknown rankings backend %q", cfg.Rankings.Backend)
	}
}

// setupPublisher connects to JetStream when NATS_URL is set. A connection
// failure falls back to logging events so the duel path never depends on
// the bus.
func (s *Services) setupPublisher(ctx context.Context, cfg *Config) events.Publisher {
	if cfg.NATS.URL == "" {
		log.Info().Msg("NATS_URL not set, match events will be logged only")
		return events.LogPublisher{}
	}

	jsCfg := events.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	jsCfg.StreamName = cfg.NATS.Stream
	jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

	publisher, err := events.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Error().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to JetStream, logging match events instead")
		return events.LogPublisher{}
	}
	return publisher
}

func (s *Services) closeSQL(db *sql.DB) {
	s.closers = append(s.closers, func() { db.Close() })
}

func (s *Services) closePool(pool *pgxpool.Pool) {
	s.closers = append(s.closers, pool.Close)
}

func (s *Services) closeRedis(client *redis.Client) {
	s.closers = append(s.closers, func() { client.Close() })
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
