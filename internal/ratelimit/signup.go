package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/openprocure/procura/internal/config"
)

const keySignupIP = "signup:ip:%s"

// SignupLimiter throttles organization signups per source IP. With no redis
// address configured the limiter is disabled and every request passes.
type SignupLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewSignupLimiter(cfg config.Config) *SignupLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.SignupRatePerHour <= 0 {
		return &SignupLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &SignupLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    float64(cfg.SignupRatePerHour) / time.Hour.Seconds(),
		burst:   cfg.SignupRatePerHour,
	}
}

func (l *SignupLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *SignupLimiter) Allow(ctx context.Context, ip string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySignupIP, strings.TrimSpace(ip)), l.rate, l.burst)
}
