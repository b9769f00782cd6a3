package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errLoginRateLimited = errors.New("rate limit exceeded")
	errAccountLocked    = errors.New("account temporarily locked")
)

// loginGuard 在 Redis 中维护两类计数：每 IP+用户名 每小时的尝试次数，
// 以及每用户名的连续失败次数，超过阈值后锁定一段时间。
type loginGuard struct {
	redis     redis.UniversalClient
	perHour   int
	threshold int
	lockTTL   time.Duration
}

func (g *loginGuard) rateKey(ip, username string, now time.Time) string {
	return "login:rate:" + ip + ":" + username + ":" + now.UTC().Format("2006010215")
}

func (g *loginGuard) failKey(username string) string { return "login:fail:" + username }
func (g *loginGuard) lockKey(username string) string { return "login:lock:" + username }

// Allow 计入一次尝试；Redis 不可用时放行。
func (g *loginGuard) Allow(ctx context.Context, ip, username string) error {
	username = strings.ToLower(username)
	if g.perHour > 0 {
		count, err := incrWithTTL(ctx, g.redis, g.rateKey(ip, username, time.Now()), time.Hour)
		if err == nil && count > int64(g.perHour) {
			return errLoginRateLimited
		}
	}
	if ttl, err := g.redis.TTL(ctx, g.lockKey(username)).Result(); err == nil && ttl > 0 {
		return errAccountLocked
	}
	return nil
}

// Fail 记录一次失败，达到阈值时加锁。
func (g *loginGuard) Fail(ctx context.Context, username string) {
	if g.threshold <= 0 {
		return
	}
	username = strings.ToLower(username)
	count, err := incrWithTTL(ctx, g.redis, g.failKey(username), g.lockTTL)
	if err != nil {
		return
	}
	if count >= int64(g.threshold) {
		_ = g.redis.Set(ctx, g.lockKey(username), "1", g.lockTTL).Err()
	}
}

// Succeed 清除失败计数。
func (g *loginGuard) Succeed(ctx context.Context, username string) {
	_ = g.redis.Del(ctx, g.failKey(strings.ToLower(username))).Err()
}

func incrWithTTL(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && ttl > 0 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
