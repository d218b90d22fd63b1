package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/cipher"
	"github.com/tendant/simple-vault/pkg/simplevault/events/kafka"
	eventsmemory "github.com/tendant/simple-vault/pkg/simplevault/events/memory"
	"github.com/tendant/simple-vault/pkg/simplevault/events/realtime"
	"github.com/tendant/simple-vault/pkg/simplevault/presigned"
	"github.com/tendant/simple-vault/pkg/simplevault/repo/memory"
	repopg "github.com/tendant/simple-vault/pkg/simplevault/repo/postgres"
	memorystorage "github.com/tendant/simple-vault/pkg/simplevault/storage/memory"
	s3storage "github.com/tendant/simple-vault/pkg/simplevault/storage/s3"
)

// Runtime is a fully wired service together with the resources it holds.
type Runtime struct {
	Service simplevault.Service
	Hub     *realtime.Hub
	Durable simplevault.DurableLog

	closers []func() error
}

// Close releases pools and producers in reverse order of creation
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build creates the repository, object store and event channels the
// configuration names and assembles the service from them.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}

	store, err := c.buildObjectStore(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to build object store: %w", err))
	}

	durable, err := c.buildDurableLog(rt, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to build durable log: %w", err))
	}
	rt.Durable = durable

	streamCipher, err := cipher.NewFromSecret(c.EncryptionSecret)
	if err != nil {
		return fail(fmt.Errorf("failed to build cipher: %w", err))
	}

	rt.Hub = realtime.NewHub(realtime.WithLogger(logger))

	svc, err := simplevault.New(
		simplevault.WithRepository(repo),
		simplevault.WithObjectStore(store),
		simplevault.WithCipher(streamCipher),
		simplevault.WithURLIssuer(presigned.NewCache(store, c.PresignCacheSize, c.PresignTTL)),
		simplevault.WithRealtimeBus(rt.Hub),
		simplevault.WithDurableLog(durable),
		simplevault.WithLogger(logger),
		simplevault.WithMaxUploadSize(c.MaxUploadSize),
		simplevault.WithCallTimeout(c.CallTimeout),
		simplevault.WithPresignTTL(c.PresignTTL),
	)
	if err != nil {
		return fail(err)
	}
	rt.Service = svc
	return rt, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simplevault.Repository, error) {
	switch c.DB.Type {
	case TypeMemory:
		return memory.New(), nil
	case TypePostgres:
		pool, err := NewPool(ctx, c.DB.URL, c.DB.Schema)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error {
			pool.Close()
			return nil
		})
		if c.DB.AutoMigrate {
			if err := ensureSchema(ctx, pool, c.DB.Schema); err != nil {
				return nil, err
			}
			if err := repopg.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DB.Type)
	}
}

func (c *ServerConfig) buildObjectStore(ctx context.Context) (simplevault.ObjectStore, error) {
	var store simplevault.ObjectStore
	switch c.Storage.Type {
	case TypeMemory:
		store = memorystorage.New()
	case TypeS3:
		backend, err := s3storage.New(ctx, c.S3Config())
		if err != nil {
			return nil, err
		}
		store = backend
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (c *ServerConfig) buildDurableLog(rt *Runtime, logger *slog.Logger) (simplevault.DurableLog, error) {
	switch c.Events.DurableType {
	case TypeMemory:
		return eventsmemory.New(), nil
	case TypeLog:
		return simplevault.NewLoggingDurableLog(logger), nil
	case TypeKafka:
		producer, err := kafka.NewProducer(c.Events.KafkaBrokers, c.Events.KafkaTopic, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, producer.Close)
		return producer, nil
	default:
		return nil, fmt.Errorf("unsupported durable type: %s", c.Events.DurableType)
	}
}

// NewPool connects to Postgres and pins every session's search_path to schema
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		searchPath := "SET search_path TO " + pgx.Identifier{schema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, searchPath)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if schema == "" {
		return nil
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}
