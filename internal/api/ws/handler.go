// Package ws serves the realtime gateway over WebSocket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/realtime"
)

const (
	defaultPingInterval   = 25 * time.Second
	defaultWriteWait      = 10 * time.Second
	defaultSendBuffer     = 64
	defaultMaxMessageSize = 64 << 10
)

// Config tunes the transport. Zero values fall back to defaults.
type Config struct {
	// AllowedOrigins lists the browser origins accepted at upgrade time.
	// "*" accepts any origin. Requests without an Origin header are
	// always accepted.
	AllowedOrigins []string
	PingInterval   time.Duration
	// PongWait is how long a silent peer survives; it must exceed
	// PingInterval. Defaults to PingInterval * 2.
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 2
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	return c
}

type dispatcher interface {
	Dispatch(ctx context.Context, conn *realtime.Connection, frame []byte)
}

type Handler struct {
	gateway  *realtime.Gateway
	router   dispatcher
	upgrader websocket.Upgrader
	cfg      Config
	log      zerolog.Logger
}

func NewHandler(gateway *realtime.Gateway, router *realtime.Router, cfg Config, log zerolog.Logger) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{gateway: gateway, router: router, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.log.Warn().Str("origin", origin).Msg("websocket origin rejected")
	return false
}

// tokenFrom reads the bearer token from the Authorization header or, for
// browsers that cannot set headers on a WebSocket, the token query param.
func tokenFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// Serve upgrades the request and runs the connection until it closes.
//
// @Summary      Realtime gateway
// @Description  WebSocket upgrade. Frames are JSON {"event": "...", "data": {...}}.
// @Tags         realtime
// @Param        token  query  string  false  "Session token when no Authorization header can be sent"
// @Success      101
// @Failure      403  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) Serve(c echo.Context) error {
	req := c.Request()
	token := tokenFrom(req)

	sock, err := h.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	// Event handlers are bounded by the read loop, not the request.
	ctx := context.WithoutCancel(req.Context())

	cl := newClient(sock, h.cfg)
	conn, err := h.gateway.Admit(ctx, token, cl)
	if err != nil {
		reason := realtime.ReasonInvalidToken
		var hs *realtime.HandshakeError
		if errors.As(err, &hs) {
			reason = hs.Reason
		}
		frame, _ := realtime.Encode(realtime.EventConnectError, realtime.ErrorPayload{Message: reason})
		cl.refuse(frame, reason)
		return nil
	}
	defer h.gateway.Disconnect(conn.ID)

	go cl.writePump()
	h.readPump(ctx, cl, conn)
	return nil
}

// readPump dispatches inbound frames in arrival order until the peer goes
// away, stops answering pings, or the gateway closes the client.
func (h *Handler) readPump(ctx context.Context, cl *client, conn *realtime.Connection) {
	defer cl.Close()

	cl.ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = cl.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	cl.ws.SetPongHandler(func(string) error {
		return cl.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		msgType, frame, err := cl.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("websocket read ended")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.router.Dispatch(ctx, conn, frame)
	}
}
