package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/seventv/chatsync/internal/stream"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

type wsConnection struct {
	gw     *Gateway
	conn   *websocket.Conn
	userID string

	ctx    context.Context
	cancel context.CancelFunc
	scope  *stream.Scope

	active map[string]context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func newConnection(gw *Gateway, ws *websocket.Conn, userID string) *wsConnection {
	ctx, cancel := context.WithCancel(gw.gCtx)

	return &wsConnection{
		gw:     gw,
		conn:   ws,
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		scope:  &stream.Scope{},
		active: map[string]context.CancelFunc{},
	}
}

func (c *wsConnection) run() {
	defer func() {
		c.cancel()
		c.close(websocket.CloseNormalClosure, "terminated")
		c.wg.Wait()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	c.write(&Frame{Op: OpHello}, HelloPayload{
		UserID:            c.userID,
		HeartbeatInterval: c.gw.HeartbeatInterval.Milliseconds(),
	})

	if c.gw.HeartbeatInterval > 0 {
		go c.heartbeat(c.ctx)
	}

	if c.gw.PingInterval > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.gw.PingInterval))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(2 * c.gw.PingInterval))
		})

		go c.ping(c.ctx)
	}

	go c.closeOnCancel(c.ctx)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.gw.log.Debugw("read failed",
					"user_id", c.userID,
					"error", err,
				)
			}

			return
		}

		f := Frame{}
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("", "invalid json")
			continue
		}

		switch f.Op {
		case OpSubscribe:
			c.subscribe(f)
		case OpUnsubscribe:
			c.unsubscribe(f.ID)
		case OpPing:
			c.write(&Frame{Op: OpPong, ID: f.ID}, nil)
		default:
			c.sendError(f.ID, fmt.Sprintf("unexpected op %q", f.Op))
		}
	}
}

func (c *wsConnection) heartbeat(ctx context.Context) {
	t := time.NewTicker(c.gw.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.write(&Frame{Op: OpHeartbeat}, nil)
		}
	}
}

func (c *wsConnection) ping(ctx context.Context) {
	t := time.NewTicker(c.gw.PingInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()

			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

// closeOnCancel unblocks the read loop once the connection or the gateway is
// shutting down.
func (c *wsConnection) closeOnCancel(ctx context.Context) {
	<-ctx.Done()
	c.close(websocket.CloseGoingAway, "shutting down")
}

func (c *wsConnection) subscribe(f Frame) {
	if f.ID == "" {
		c.sendError("", "subscription id is required")
		return
	}

	p := SubscribePayload{}
	if err := json.Unmarshal(f.D, &p); err != nil {
		c.sendError(f.ID, "invalid subscribe payload")
		c.complete(f.ID)

		return
	}

	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}

	if _, ok := c.active[f.ID]; ok {
		c.mu.Unlock()
		c.sendError(f.ID, "subscription id is already in use")

		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.active[f.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)

	go func() {
		defer func() {
			cancel()

			c.mu.Lock()
			delete(c.active, f.ID)
			c.mu.Unlock()

			c.wg.Done()
		}()

		err := c.serve(ctx, f.ID, p)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.sendError(f.ID, err.Error())
		}

		c.complete(f.ID)
	}()
}

func (c *wsConnection) unsubscribe(id string) {
	c.mu.Lock()
	cancel := c.active[id]
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// write sends one frame. Nothing is written once the connection is closing.
func (c *wsConnection) write(f *Frame, payload interface{}) {
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.gw.log.Errorw("failed to encode payload",
				"op", f.Op,
				"error", err,
			)

			return
		}

		f.D = b
	}

	b, err := json.Marshal(f)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.cancel()
	}
}

func (c *wsConnection) sendData(id string, payload interface{}) {
	c.write(&Frame{Op: OpData, ID: id}, payload)
}

func (c *wsConnection) sendError(id string, message string) {
	c.write(&Frame{Op: OpError, ID: id}, ErrorPayload{Message: message})
}

func (c *wsConnection) complete(id string) {
	c.write(&Frame{Op: OpComplete, ID: id}, nil)
}

func (c *wsConnection) close(closeCode int, message string) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}

	for _, cancel := range c.active {
		cancel()
	}

	c.active = nil
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, message), time.Now().Add(writeWait))
	c.mu.Unlock()

	if err := c.scope.Close(); err != nil {
		c.gw.log.Debugw("subscriptions ended with errors",
			"user_id", c.userID,
			"error", err,
		)
	}

	_ = c.conn.Close()
}
