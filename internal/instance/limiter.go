package instance

import (
	"context"
	"time"
)

// Limiter counts hits against a fixed window per key.
type Limiter interface {
	Take(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error)
}

type LimitResult struct {
	Limit     int64
	Remaining int64
	// Reset is the number of seconds until the window ends.
	Reset int64
}
