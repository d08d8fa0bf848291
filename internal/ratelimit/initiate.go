package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/cubridge/voiceline/internal/config"
)

const keyCallInitiate = "calls:initiate:tenant:%s"

// CallInitiateLimiter throttles outbound call placement per tenant so one
// credit union's campaign cannot exhaust the shared carrier account. A nil
// limiter (feature disabled) allows everything.
type CallInitiateLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCallInitiateLimiter(cfg config.Config) (*CallInitiateLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.InitiateRate <= 0 || limitCfg.InitiateBurst <= 0 {
		return nil, errors.New("call initiate rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    strings.TrimSpace(limitCfg.RedisPassword),
		DB:          limitCfg.RedisDB,
		DialTimeout: 2 * time.Second,
	})

	return &CallInitiateLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.InitiateRate,
		burst:   limitCfg.InitiateBurst,
	}, nil
}

func (l *CallInitiateLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CallInitiateLimiter) Allow(ctx context.Context, tenantID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyCallInitiate, strings.TrimSpace(tenantID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
