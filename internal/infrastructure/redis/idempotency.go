// Package redis guarda las claves de idempotencia de facturas y serializa envíos repetidos.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/pkg/config"
)

var _ billing.IdempotencyGuard = (*IdempotencyGuard)(nil)

const (
	keyPrefix  = "spa:invoice:idem:"
	lockPrefix = "spa:invoice:lock:"
	lockTTL    = 30 * time.Second
)

// NewClient conecta y verifica el servidor Redis.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// IdempotencyGuard candado por clave (redislock) + mapa clave -> factura con TTL.
type IdempotencyGuard struct {
	rdb    goredis.UniversalClient
	locker *redislock.Client
	ttl    time.Duration
}

// NewIdempotencyGuard ttl es lo que se recuerda una clave ya liquidada.
func NewIdempotencyGuard(rdb goredis.UniversalClient, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{rdb: rdb, locker: redislock.New(rdb), ttl: ttl}
}

// Lock toma el candado de la clave con reintento lineal corto. Si otro envío con la misma
// clave lo mantiene ocupado devuelve ErrConcurrencyConflict.
func (g *IdempotencyGuard) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := g.locker.Obtain(ctx, lockPrefix+key, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: factura con la misma clave en curso", domain.ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	return func() { _ = lock.Release(context.WithoutCancel(ctx)) }, nil
}

func (g *IdempotencyGuard) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := g.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return id, true, nil
}

func (g *IdempotencyGuard) Remember(ctx context.Context, key, invoiceID string) error {
	if err := g.rdb.Set(ctx, keyPrefix+key, invoiceID, g.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
