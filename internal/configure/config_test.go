package configure

import (
	"testing"
	"time"

	"github.com/seventv/chatsync/internal/testutil"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()

	testutil.Assert(t, StoreModeMemory, c.Store.Mode, "store mode")
	testutil.Assert(t, IdentityModeMemory, c.Identity.Mode, "identity mode")
	testutil.Assert(t, "chatsync:", c.Redis.Prefix, "redis prefix")
	testutil.Assert(t, 30*time.Second, c.Gateway.HeartbeatInterval, "heartbeat interval")
	testutil.Assert(t, 3000, c.Http.Port, "http port")
	testutil.Assert(t, Limit{Count: 30, Window: 10 * time.Second}, c.Limits.Messages, "message limit")
	testutil.Assert(t, false, c.PProf.Enabled, "pprof off by default")
}

func TestLabelsToPrometheus(t *testing.T) {
	t.Parallel()

	l := Labels{
		{Key: "region", Value: "eu"},
		{Key: "pod", Value: "a"},
	}

	mp := l.ToPrometheus()

	testutil.Assert(t, 2, len(mp), "label count")
	testutil.Assert(t, "eu", mp["region"], "region label")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testutil.Assert(t, zap.WarnLevel, parseLevel("warn"), "warn level")
	testutil.Assert(t, zap.InfoLevel, parseLevel("nonsense"), "fallback level")
}
