package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "socialreact"

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// PoolOptions sizes the connection pool. Zero values fall back to defaults.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

var (
	parsePGConfig = pgxpool.ParseConfig
	newPGPool     = pgxpool.NewWithConfig
	pingPGPool    = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
	closePGPool = func(pool *pgxpool.Pool) {
		pool.Close()
	}
	statPGPool = func(pool *pgxpool.Pool) PoolStats {
		st := pool.Stat()
		return PoolStats{
			Total: int64(st.TotalConns()),
			Idle:  int64(st.IdleConns()),
			InUse: int64(st.AcquiredConns()),
			Waits: st.EmptyAcquireCount(),
		}
	}
)

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Total int64
	Idle  int64
	InUse int64
	// Waits counts acquires that found no idle connection (PostgreSQL) or
	// timed out waiting for one (Redis).
	Waits int64
}

func NewPostgresDB(dsn string, opts PoolOptions) (*PostgresDB, error) {
	config, err := parsePGConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	config.MaxConns = 25
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = 5
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if config.MinConns > config.MaxConns {
		config.MinConns = config.MaxConns
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute
	if config.ConnConfig != nil {
		if config.ConnConfig.RuntimeParams == nil {
			config.ConnConfig.RuntimeParams = map[string]string{}
		}
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := newPGPool(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pingPGPool(ctx, pool); err != nil {
		closePGPool(pool)
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		closePGPool(db.Pool)
	}
}

func (db *PostgresDB) Health(ctx context.Context) error {
	return pingPGPool(ctx, db.Pool)
}

// Stats reports pool occupancy. A closed or never-opened pool reports zeros.
func (db *PostgresDB) Stats() PoolStats {
	if db.Pool == nil {
		return PoolStats{}
	}
	return statPGPool(db.Pool)
}
