package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/testutil"
)

var _ instance.Limiter = (*MemoryInstance)(nil)
var _ instance.Limiter = (*RedisInstance)(nil)

func TestMemoryWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		res, err := m.Take(ctx, "send:A", 3, 10*time.Second)
		testutil.IsNil(t, err, "take")
		testutil.Assert(t, 3-i, res.Remaining, "remaining")
		testutil.Assert(t, int64(10), res.Reset, "reset")
	}

	res, _ := m.Take(ctx, "send:A", 3, 10*time.Second)
	testutil.Assert(t, int64(0), res.Remaining, "exhausted")

	res, _ = m.Take(ctx, "send:B", 3, 10*time.Second)
	testutil.Assert(t, int64(2), res.Remaining, "keys are independent")

	now = now.Add(4 * time.Second)
	res, _ = m.Take(ctx, "send:A", 3, 10*time.Second)
	testutil.Assert(t, int64(6), res.Reset, "reset counts down")

	now = now.Add(6 * time.Second)
	res, _ = m.Take(ctx, "send:A", 3, 10*time.Second)
	testutil.Assert(t, int64(2), res.Remaining, "new window")
}
