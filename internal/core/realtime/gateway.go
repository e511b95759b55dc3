package realtime

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

// Handshake refusal reasons surfaced to the client.
const (
	ReasonNoToken      = "Authentication error: No token provided"
	ReasonInvalidToken = "Authentication error: Invalid token"
	ReasonInvalidUser  = "Authentication error: Invalid user"
)

var (
	ErrRoomNotJoinable    = fmt.Errorf("%w: room cannot be joined or left by clients", domain.ErrForbidden)
	ErrConnectionNotFound = fmt.Errorf("%w: connection not found", domain.ErrNotFound)
)

// HandshakeError is returned by Admit when a connection is refused.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string { return e.Reason }

// Sender is the transport half of a connection. Send must not block: it
// queues the frame and reports false when the frame was dropped. Close ends
// the transport, which in turn calls Gateway.Disconnect.
type Sender interface {
	Send(frame []byte) bool
	Close()
}

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Connection is an admitted client.
type Connection struct {
	ID          string
	SubjectID   string
	Role        domain.Role
	ConnectedAt time.Time

	sender Sender

	// mu serializes membership changes and state transitions.
	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats is a point-in-time view of the gateway.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Gateway admits connections, tracks room membership and fans frames out to
// room members.
type Gateway struct {
	tokens     ports.TokenVerifier
	identities ports.IdentityLookup
	registry   *Registry
	log        zerolog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewGateway(tokens ports.TokenVerifier, identities ports.IdentityLookup, registry *Registry, log zerolog.Logger) *Gateway {
	if registry == nil {
		registry = NewRegistry(defaultShards)
	}
	return &Gateway{
		tokens:     tokens,
		identities: identities,
		registry:   registry,
		log:        log,
		now:        time.Now,
		conns:      make(map[string]*Connection),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newConnectionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Admit runs the handshake for a new transport connection. On success the
// connection is AUTHENTICATED and a member of its user and role rooms. On
// failure it returns a *HandshakeError and no membership exists.
func (g *Gateway) Admit(ctx context.Context, token string, sender Sender) (*Connection, error) {
	conn := &Connection{ID: newConnectionID(), sender: sender, state: StateConnecting}

	if token == "" {
		return nil, g.refuse(conn, "no_token", ReasonNoToken, nil)
	}

	claims, err := g.tokens.Verify(token, domain.PurposeSession)
	if err != nil {
		return nil, g.refuse(conn, "invalid_token", ReasonInvalidToken, err)
	}

	user, err := g.identities.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, g.refuse(conn, "invalid_user", ReasonInvalidUser, err)
		}
		g.log.Error().Err(err).Str("subject_id", claims.SubjectID).Msg("identity lookup failed during handshake")
		return nil, g.refuse(conn, "invalid_token", ReasonInvalidToken, err)
	}
	if !user.IsActive {
		return nil, g.refuse(conn, "invalid_user", ReasonInvalidUser, nil)
	}

	conn.SubjectID = user.ID
	conn.Role = user.Role
	conn.ConnectedAt = g.now().UTC()

	conn.mu.Lock()
	g.mu.Lock()
	g.conns[conn.ID] = conn
	g.mu.Unlock()
	g.registry.Join(UserRoom(conn.SubjectID), conn.ID)
	g.registry.Join(RoleRoom(conn.Role), conn.ID)
	conn.state = StateAuthenticated
	conn.mu.Unlock()

	metrics.HandshakesTotal.WithLabelValues("ok").Inc()
	metrics.ActiveConnections.Inc()
	g.log.Info().
		Str("conn_id", conn.ID).
		Str("user_id", conn.SubjectID).
		Str("role", string(conn.Role)).
		Msg("connection admitted")
	return conn, nil
}

func (g *Gateway) refuse(conn *Connection, result, reason string, cause error) error {
	conn.mu.Lock()
	conn.state = StateDisconnected
	conn.mu.Unlock()

	metrics.HandshakesTotal.WithLabelValues(result).Inc()
	g.log.Debug().Err(cause).Str("conn_id", conn.ID).Str("reason", reason).Msg("handshake refused")
	return &HandshakeError{Reason: reason}
}

// Connection returns the live connection with id.
func (g *Gateway) Connection(id string) (*Connection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[id]
	return c, ok
}

// Join adds the connection to a chat room. Joining twice is a no-op.
func (g *Gateway) Join(connID string, room RoomID) error {
	if room.Kind() != KindChat {
		return ErrRoomNotJoinable
	}
	conn, ok := g.Connection(connID)
	if !ok {
		return ErrConnectionNotFound
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.state != StateAuthenticated {
		return ErrConnectionNotFound
	}
	if g.registry.Join(room, connID) {
		g.log.Debug().Str("conn_id", connID).Str("room", string(room)).Msg("joined room")
	}
	return nil
}

// Leave removes the connection from a chat room. The user and role rooms
// cannot be left.
func (g *Gateway) Leave(connID string, room RoomID) error {
	if room.Kind() != KindChat {
		return ErrRoomNotJoinable
	}
	conn, ok := g.Connection(connID)
	if !ok {
		return ErrConnectionNotFound
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if g.registry.Leave(room, connID) {
		g.log.Debug().Str("conn_id", connID).Str("room", string(room)).Msg("left room")
	}
	return nil
}

// Broadcast delivers event to every connection in room and returns the
// number of frames queued. An empty room is not an error.
func (g *Gateway) Broadcast(room RoomID, event string, payload any) (int, error) {
	return g.BroadcastExcept(room, "", event, payload)
}

// BroadcastExcept is Broadcast skipping the connection exceptID.
func (g *Gateway) BroadcastExcept(room RoomID, exceptID, event string, payload any) (int, error) {
	frame, err := Encode(event, payload)
	if err != nil {
		return 0, err
	}

	members := g.registry.Members(room)
	if len(members) == 0 {
		return 0, nil
	}

	delivered := 0
	g.mu.RLock()
	for _, id := range members {
		if id == exceptID {
			continue
		}
		conn, ok := g.conns[id]
		if !ok {
			continue
		}
		if conn.sender.Send(frame) {
			delivered++
		} else {
			metrics.DroppedFramesTotal.Inc()
		}
	}
	g.mu.RUnlock()

	metrics.BroadcastsTotal.WithLabelValues(room.Kind()).Inc()
	return delivered, nil
}

// Emit delivers event to a single connection.
func (g *Gateway) Emit(connID, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	conn, ok := g.Connection(connID)
	if !ok {
		return ErrConnectionNotFound
	}
	if !conn.sender.Send(frame) {
		metrics.DroppedFramesTotal.Inc()
	}
	return nil
}

// Disconnect removes the connection and every membership it holds. It is
// safe to call more than once and for connections that never authenticated.
func (g *Gateway) Disconnect(connID string) {
	g.mu.Lock()
	conn, ok := g.conns[connID]
	delete(g.conns, connID)
	g.mu.Unlock()

	if !ok {
		g.registry.Drop(connID)
		return
	}

	conn.mu.Lock()
	conn.state = StateDisconnected
	rooms := g.registry.Drop(connID)
	conn.mu.Unlock()

	metrics.ActiveConnections.Dec()
	g.log.Info().
		Str("conn_id", connID).
		Str("user_id", conn.SubjectID).
		Int("rooms", len(rooms)).
		Msg("connection closed")
}

// Shutdown closes every live transport. Each transport then calls
// Disconnect from its own goroutine.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	senders := make([]Sender, 0, len(g.conns))
	for _, c := range g.conns {
		senders = append(senders, c.sender)
	}
	g.mu.RUnlock()

	for _, s := range senders {
		s.Close()
	}
}

// Stats returns the number of live connections and non-empty rooms.
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	n := len(g.conns)
	g.mu.RUnlock()
	return Stats{Connections: n, Rooms: g.registry.RoomCount()}
}

// Registry exposes the room registry for inspection.
func (g *Gateway) Registry() *Registry { return g.registry }
