package runguard

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

const keyPrefix = "mailsorter:run:"

// releaseScript deletes the key only while it still holds our token, so an
// expired guard taken over by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisGuard struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

// NewRunGuard returns a redis backed guard, or a guard that always acquires
// when no redis address is configured.
func NewRunGuard(cfg *config.RedisConfig, ttl time.Duration, log logger.Logger) interfaces.RunGuard {
	if cfg == nil || cfg.Addr == "" {
		return nopGuard{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	return newRedisGuard(rdb, ttl, log)
}

func newRedisGuard(rdb *redis.Client, ttl time.Duration, log logger.Logger) *redisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisGuard{rdb: rdb, ttl: ttl, log: log}
}

func (g *redisGuard) Acquire(ctx context.Context, owner string) (func(), bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RunGuard.Acquire")
	defer span.Finish()
	tracing.TagOwner(span, owner)

	key := fmt.Sprintf("%s%s", keyPrefix, owner)
	token := utils.GenerateNanoIDWithPrefix("run", 16)

	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		// redis unavailable, run anyway
		g.log.With(zap.String("owner", owner), zap.Error(err)).Warn("Run guard check failed, allowing run")
		span.LogKV("failOpen", true)
		return func() {}, true
	}
	if !ok {
		g.log.With(zap.String("owner", owner)).Info("Skipped run, another run is active")
		span.LogKV("acquired", false)
		return func() {}, false
	}

	span.LogKV("acquired", true)
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.rdb, []string{key}, token).Err(); err != nil {
			g.log.Warnf("Unable to release run guard for %s: %v", owner, err)
		}
	}, true
}

type nopGuard struct{}

func (nopGuard) Acquire(context.Context, string) (func(), bool) {
	return func() {}, true
}
