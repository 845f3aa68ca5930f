package gardeninfra

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/redis/go-redis/v9"
)

// RedisRefreshPolicy is a garden.RefreshPolicy that throttles on-demand
// refreshes per scope: once a refresh for a scope is permitted, further
// refreshes of that scope are suppressed until the cooldown elapses.
//
// A zero cooldown disables throttling entirely, which matches the default
// always-permit behavior of the facade. Redis errors fail open: an
// unreachable Redis must not take refresh capability down with it.
type RedisRefreshPolicy struct {
	rdb      *redis.Client
	cooldown time.Duration
}

// NewRedisRefreshPolicy creates a policy over rdb with the given cooldown.
func NewRedisRefreshPolicy(rdb *redis.Client, cooldown time.Duration) *RedisRefreshPolicy {
	return &RedisRefreshPolicy{rdb: rdb, cooldown: cooldown}
}

func policyKey(scope string) string {
	return fmt.Sprintf("verdant:refresh:%s", scope)
}

// ShouldRefresh implements garden.RefreshPolicy.
func (p *RedisRefreshPolicy) ShouldRefresh(ctx context.Context, scope string) bool {
	if p.cooldown <= 0 {
		return true
	}

	// SETNX doubles as check and claim: the first caller in a cooldown
	// window wins, everyone else is suppressed until the key expires.
	ok, err := p.rdb.SetNX(ctx, policyKey(scope), time.Now().UTC().Format(time.RFC3339), p.cooldown).Result()
	if err != nil {
		logx.WithError(infraErrors.NewWithCause(ErrPolicy, err)).
			WithField("scope", scope).
			Warn("refresh policy check failed, permitting refresh")
		return true
	}
	if !ok {
		logx.WithField("scope", scope).Debug("refresh suppressed by cooldown")
	}
	return ok
}
