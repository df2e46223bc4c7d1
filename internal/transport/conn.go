package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var (
	errClosed    = errors.New("connection closed")
	errQueueFull = errors.New("send queue full")
)

const (
	writeTimeout = 10 * time.Second
	pingTimeout  = 3 * time.Second
)

// wsConn adapts a websocket to registry.Member. Frames are queued; a full queue drops the
// frame rather than blocking the broadcaster.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newConn(id string, ws *websocket.Conn, buffer int, logger *zap.Logger) *wsConn {
	if buffer <= 0 {
		buffer = 32
	}
	return &wsConn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(p []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- p:
		return nil
	case <-c.done:
		return errClosed
	default:
		c.logger.Warn("ws_send_dropped", zap.String("conn", c.id), zap.Int("queued", len(c.send)))
		return errQueueFull
	}
}

func (c *wsConn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(code, reason)
	})
}

func (c *wsConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case p := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, p)
			cancel()
			if err != nil {
				c.logger.Debug("ws_write_error", zap.String("conn", c.id), zap.Error(err))
				c.close(websocket.StatusInternalError, "write failure")
				return
			}
		}
	}
}

// pingLoop closes the connection after two consecutive failed pings.
func (c *wsConn) pingLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.logger.Info("ws_ping_timeout", zap.String("conn", c.id))
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// readLoop feeds every inbound frame to handle until the peer goes away.
func (c *wsConn) readLoop(ctx context.Context, handle func(context.Context, []byte)) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.logger.Debug("ws_read_end", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		handle(ctx, data)
	}
}
