package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client adapts a websocket connection to realtime.Sender. Frames are
// queued on send and written by writePump, the only goroutine that writes
// to the socket once the handshake has completed.
type client struct {
	ws   *websocket.Conn
	cfg  Config
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ws *websocket.Conn, cfg Config) *client {
	return &client{
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues frame without blocking. A full buffer drops the frame.
func (c *client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close asks writePump to send a close frame and tear the socket down.
func (c *client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// refuse tells the peer why the handshake failed and closes the socket.
// It runs before the pumps start, so it writes directly.
func (c *client) refuse(frame []byte, reason string) {
	deadline := time.Now().Add(c.cfg.WriteWait)
	_ = c.ws.SetWriteDeadline(deadline)
	_ = c.ws.WriteMessage(websocket.TextMessage, frame)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = c.ws.Close()
	c.Close()
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection"),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
