//go:build integration

package limiter

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/seventv/chatsync/internal/testutil"
)

func newRedis(t *testing.T) *RedisInstance {
	t.Helper()

	addr := os.Getenv("CHATSYNC_TEST_REDIS")
	if addr == "" {
		t.Skip("CHATSYNC_TEST_REDIS not set")
	}

	ctx := context.Background()
	cl := redis.NewClient(&redis.Options{Addr: addr})

	t.Cleanup(func() {
		_ = cl.Close()
	})

	r, err := NewRedis(ctx, cl, "chatsync-test-"+strconv.FormatInt(time.Now().UnixNano(), 36)+":")
	testutil.IsNil(t, err, "load script")

	return r
}

func TestRedisWindow(t *testing.T) {
	ctx := context.Background()
	r := newRedis(t)

	for _, want := range []int64{1, 0, 0} {
		res, err := r.Take(ctx, "send:A", 2, 10*time.Second)
		testutil.IsNil(t, err, "take")
		testutil.Assert(t, int64(2), res.Limit, "limit")
		testutil.Assert(t, want, res.Remaining, "remaining")
		testutil.Assert(t, true, res.Reset > 0 && res.Reset <= 10, "reset within window")
	}

	res, err := r.Take(ctx, "send:B", 2, 10*time.Second)
	testutil.IsNil(t, err, "take other key")
	testutil.Assert(t, int64(1), res.Remaining, "keys are independent")
}

func TestRedisScriptReload(t *testing.T) {
	ctx := context.Background()
	r := newRedis(t)

	testutil.IsNil(t, r.cl.ScriptFlush(ctx).Err(), "flush scripts")

	res, err := r.Take(ctx, "auth:A", 5, time.Minute)
	testutil.IsNil(t, err, "take after flush")
	testutil.Assert(t, int64(4), res.Remaining, "counted")
}
