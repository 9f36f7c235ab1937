package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisDB struct {
	Client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

var (
	newRedisClient = redis.NewClient
	redisPing      = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	redisPoolStats = func(client *redis.Client) *redis.PoolStats {
		return client.PoolStats()
	}
)

func NewRedisDB(opts RedisOptions) (*RedisDB, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := newRedisClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: min(3, poolSize),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisPing(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *RedisDB) Health(ctx context.Context) error {
	return redisPing(ctx, r.Client)
}

// Stats reports connection pool occupancy for the rate limiter's client.
func (r *RedisDB) Stats() PoolStats {
	if r.Client == nil {
		return PoolStats{}
	}
	st := redisPoolStats(r.Client)
	if st == nil {
		return PoolStats{}
	}
	return PoolStats{
		Total: int64(st.TotalConns),
		Idle:  int64(st.IdleConns),
		InUse: int64(st.TotalConns) - int64(st.IdleConns),
		Waits: int64(st.Timeouts),
	}
}
