package echoapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/tracking"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 32
)

var errSendBufferFull = errors.New("websocket send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// tracking links are opened from any origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn is a tracking.Conn over a websocket.
// Send only queues the message; writePump is the single writer of the socket.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

var _ tracking.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues msg. A peer that lets its queue fill up is disconnected.
func (c *wsConn) Send(msg tracking.Message) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}

	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.close()
		return errSendBufferFull
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) write(messageType int, payload []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(messageType, payload)
}

// writePump drains the send queue and pings the peer until the connection is closed.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// newTrackingHandler upgrades the request and serves the tracking protocol until the client goes away.
func newTrackingHandler(gw *tracking.Gateway, logger core.Logger) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ws, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
		if err != nil {
			// the upgrader already replied
			logger.Debug("websocket upgrade failed", err)
			return nil
		}

		conn := newWSConn(ws)
		gw.Connect(conn)
		defer func() {
			gw.Disconnect(conn)
			conn.close()
		}()
		go conn.writePump()

		ws.SetReadLimit(wsMaxMessageSize)
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("websocket closed unexpectedly", err, map[string]interface{}{"connId": conn.id})
				}
				return nil
			}

			var in tracking.Inbound
			if err = sonic.Unmarshal(payload, &in); err != nil {
				_ = conn.Send(tracking.Message{Event: tracking.EventError, Data: tracking.Ack{Message: "Invalid message"}})
				continue
			}
			gw.Handle(conn, in)
		}
	}
}
