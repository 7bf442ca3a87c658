package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gritengine/gritd/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	pingTimeout     = 5 * time.Second
	applicationName = "gritd"
)

var errNoDSN = errors.New("database dsn is empty")

// Store is the Postgres connection behind the placement repository. A
// store returned by Open has been reached once and carries the latest
// embedded schema.
type Store struct {
	pool    *pgxpool.Pool
	log     *zap.Logger
	version int64
}

// Open connects, checks the server answers and migrates the schema. The
// pool is closed again on any failure.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, log: log}
	if err := s.ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if s.version, err = migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("placement store ready",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Int64("schema_version", s.version))
	return s, nil
}

// poolConfig maps the [database] section onto pgx pool settings. Zero
// values keep the pgx defaults; idle connections never exceed the cap.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, errNoDSN
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = min(int32(cfg.MaxIdleConns), pc.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return pc, nil
}

func (s *Store) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Pool exposes the pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// SchemaVersion is the migration version the store was opened at.
func (s *Store) SchemaVersion() int64 { return s.version }

func (s *Store) Close() {
	s.pool.Close()
	s.log.Debug("placement store closed")
}
