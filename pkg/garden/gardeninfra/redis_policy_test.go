package gardeninfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardeninfra"
	"github.com/redis/go-redis/v9"
)

func TestRedisRefreshPolicy_ZeroCooldownAlwaysPermits(t *testing.T) {
	policy := gardeninfra.NewRedisRefreshPolicy(nil, 0)
	for i := 0; i < 3; i++ {
		if !policy.ShouldRefresh(context.Background(), garden.ScopeAll) {
			t.Fatal("zero cooldown must permit every refresh")
		}
	}
}

func TestRedisRefreshPolicy_FailsOpenWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	policy := gardeninfra.NewRedisRefreshPolicy(rdb, time.Minute)
	if !policy.ShouldRefresh(context.Background(), garden.ZoneScope(4)) {
		t.Fatal("an unreachable redis must not block refreshes")
	}
}
