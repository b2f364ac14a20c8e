package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"

	idempotencyLockTTL = 10 * time.Second
	idempotencyTTL     = 24 * time.Hour

	stateProcessing = "processing"
	stateCompleted  = "completed"
)

// IdempotencyStore is the subset of *redis.Client used by the Idempotency middleware.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisConfig configures the idempotency store. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Idempotency rejects a repeated Idempotency-Key on state-changing requests with 409.
// A key is remembered for a day once its request succeeds and released otherwise.
// When the store is unreachable requests pass through unchecked. The key is also
// released when a downstream handler panics.
func Idempotency(store IdempotencyStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := fmt.Sprintf("idempotency:%s:%s", r.URL.Path, key)
			ctx := r.Context()

			acquired, err := store.SetNX(ctx, idemKey, stateProcessing, idempotencyLockTTL).Result()
			if err != nil {
				logger.Warn("idempotency store unavailable, skipping check", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !acquired {
				state, err := store.Get(ctx, idemKey).Result()
				switch {
				case errors.Is(err, redis.Nil):
					// expired between SETNX and GET
					next.ServeHTTP(w, r)
					return
				case err != nil:
					logger.Warn("failed to read idempotency key", zap.String("key", idemKey), zap.Error(err))
				case state == stateCompleted:
					w.Header().Set(IdempotencyHitHeader, "true")
					writeError(w, http.StatusConflict, "request already processed")
					return
				}
				writeError(w, http.StatusConflict, "concurrent request")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			served := false

			defer func() {
				// the client may already be gone
				ctx := context.WithoutCancel(ctx)

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				var err error
				if served && status < http.StatusMultipleChoices {
					err = store.Set(ctx, idemKey, stateCompleted, idempotencyTTL).Err()
				} else {
					err = store.Del(ctx, idemKey).Err()
				}
				if err != nil {
					logger.Warn("failed to update idempotency key", zap.String("key", idemKey), zap.Error(err))
				}
			}()

			next.ServeHTTP(ww, r)
			served = true
		})
	}
}
