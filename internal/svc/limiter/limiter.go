package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/common/utils"
)

const script = `
	local key = ARGV[1]
	local expire = tonumber(ARGV[2])
	local by = tonumber(ARGV[3])

	local exists = redis.call("EXISTS", key)

	local count = redis.call("INCRBY", key, by)

	if exists == 0 then
		redis.call("EXPIRE", key, expire)
		return {count, expire}
	end

	local ttl = redis.call("TTL", key)

	return {count, ttl}
`

func hash(key string) string {
	h := sha256.New()
	h.Write(utils.S2B(key))

	return hex.EncodeToString(h.Sum(nil))
}

func result(limit, count, ttl int64) instance.LimitResult {
	return instance.LimitResult{
		Limit:     limit,
		Remaining: utils.Ternary(count > limit, 0, limit-count),
		Reset:     ttl,
	}
}

type window struct {
	count int64
	reset time.Time
}

// MemoryInstance keeps counters in process.
type MemoryInstance struct {
	windows *cache.Cache
	mx      sync.Mutex
	now     func() time.Time
}

func NewMemory() *MemoryInstance {
	return &MemoryInstance{
		windows: cache.New(time.Minute, 5*time.Minute),
		now:     time.Now,
	}
}

func (m *MemoryInstance) Take(ctx context.Context, key string, limit int64, dur time.Duration) (instance.LimitResult, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	now := m.now()
	k := hash(key)

	w, ok := m.windows.Get(k)
	if !ok || !now.Before(w.(*window).reset) {
		w = &window{reset: now.Add(dur)}
		m.windows.Set(k, w, dur)
	}

	win := w.(*window)
	win.count++

	ttl := int64(win.reset.Sub(now).Round(time.Second) / time.Second)

	return result(limit, win.count, ttl), nil
}

// RedisInstance shares counters between replicas through a lua script.
type RedisInstance struct {
	cl     redis.UniversalClient
	prefix string
	sha    string
	mx     sync.Mutex
}

func NewRedis(ctx context.Context, cl redis.UniversalClient, prefix string) (*RedisInstance, error) {
	r := &RedisInstance{
		cl:     cl,
		prefix: prefix,
	}

	if err := r.loadScript(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RedisInstance) loadScript(ctx context.Context) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	sha, err := r.cl.ScriptLoad(ctx, script).Result()
	if err != nil {
		return fmt.Errorf("limiter: load script: %w", err)
	}

	r.sha = sha

	return nil
}

func (r *RedisInstance) scriptSHA() string {
	r.mx.Lock()
	defer r.mx.Unlock()

	return r.sha
}

func (r *RedisInstance) Take(ctx context.Context, key string, limit int64, dur time.Duration) (instance.LimitResult, error) {
	k := r.prefix + "rl:" + hash(key)
	args := []interface{}{k, int64(dur.Seconds()), 1}

	res, err := r.cl.EvalSha(ctx, r.scriptSHA(), []string{}, args...).Result()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		if err = r.loadScript(ctx); err == nil {
			res, err = r.cl.EvalSha(ctx, r.scriptSHA(), []string{}, args...).Result()
		}
	}

	if err != nil {
		return instance.LimitResult{}, fmt.Errorf("limiter: eval: %w", err)
	}

	a := make([]int64, 2)

	if values, ok := res.([]interface{}); ok {
		for i, v := range values {
			if i >= len(a) {
				break
			}

			if n, ok := v.(int64); ok {
				a[i] = n
			}
		}
	}

	return result(limit, a[0], a[1]), nil
}
