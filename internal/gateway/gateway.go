package gateway

import (
	"time"

	"github.com/fasthttp/websocket"
	"github.com/seventv/chatsync/internal/global"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Gateway serves live subscriptions over websocket connections.
type Gateway struct {
	Upgrader          websocket.FastHTTPUpgrader
	HeartbeatInterval time.Duration
	PingInterval      time.Duration

	gCtx global.Context
	log  *zap.SugaredLogger
	now  func() time.Time
}

func New(gCtx global.Context) *Gateway {
	return &Gateway{
		Upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
				return true
			},
		},
		HeartbeatInterval: gCtx.Config().Gateway.HeartbeatInterval,
		PingInterval:      gCtx.Config().Gateway.PingInterval,
		gCtx:              gCtx,
		log:               zap.S().Named("gateway"),
		now:               time.Now,
	}
}

func (g *Gateway) Supports(ctx *fasthttp.RequestCtx) bool {
	return websocket.FastHTTPIsWebSocketUpgrade(ctx)
}

// Do upgrades the request and serves userID on the connection until either
// side closes it or the gateway shuts down.
func (g *Gateway) Do(r *fasthttp.RequestCtx, userID string) error {
	return g.Upgrader.Upgrade(r, func(ws *websocket.Conn) {
		conn := newConnection(g, ws, userID)

		g.log.Debugw("connection opened",
			"user_id", userID,
			"remote", ws.RemoteAddr().String(),
		)

		conn.run()

		g.log.Debugw("connection closed",
			"user_id", userID,
		)
	})
}
