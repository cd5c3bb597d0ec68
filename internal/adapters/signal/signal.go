package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/app/orch"
	"github.com/scrumdeck/scrumdeck/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the websocket side of the protocol: one read pump
// and one write pump per connection, all session mutations routed
// through the orchestrator.
type Controller struct {
	Orch       *orch.Orchestrator
	Limiter    *JoinRateLimiter
	ReadLimit  int64
	SendBuffer int
}

func NewController(o *orch.Orchestrator, limiter *JoinRateLimiter, readLimit int64, sendBuffer int) *Controller {
	return &Controller{
		Orch:       o,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		SendBuffer: sendBuffer,
	}
}

// WsConn wraps a websocket with a buffered send channel. TrySend never
// blocks; a full buffer is backpressure for the policy to act on.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connID derives a fresh connection id per upgrade. The browser token
// stays as a prefix for log correlation, but two tabs of one browser
// must never share an id: registry bindings and pump teardown are
// keyed on it.
func connID(token string) core.ConnID {
	return core.ConnID(token + ":" + uuid.NewString())
}

// HandleWS upgrades the request and starts the pumps.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	cid := connID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindConn(cid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cid, conn)
}
