package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

func TestGateway_Admit(t *testing.T) {
	f := newGatewayFixture(t)

	conn, _ := f.admit(t, "student-1")

	assert.Equal(t, StateAuthenticated, conn.State())
	assert.Equal(t, "student-1", conn.SubjectID)
	assert.Equal(t, domain.RoleStudent, conn.Role)
	assert.Len(t, conn.ID, 26, "ULID")
	assert.Equal(t,
		[]RoomID{RoleRoom(domain.RoleStudent), UserRoom("student-1")},
		f.gw.Registry().RoomsOf(conn.ID))
	assert.Equal(t, Stats{Connections: 1, Rooms: 2}, f.gw.Stats())
}

func TestGateway_AdmitRefused(t *testing.T) {
	f := newGatewayFixture(t)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{name: "no token", token: "", reason: ReasonNoToken},
		{name: "garbage", token: "not-a-jwt", reason: ReasonInvalidToken},
		{name: "reset token", token: f.token(t, "student-1", domain.PurposePasswordReset), reason: ReasonInvalidToken},
		{name: "unknown user", token: f.token(t, "ghost", domain.PurposeSession), reason: ReasonInvalidUser},
		{name: "inactive user", token: f.token(t, "inactive", domain.PurposeSession), reason: ReasonInvalidUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			conn, err := f.gw.Admit(context.Background(), tt.token, sender)
			require.Error(t, err)
			assert.Nil(t, conn)

			var hs *HandshakeError
			require.True(t, errors.As(err, &hs))
			assert.Equal(t, tt.reason, hs.Reason)
			assert.Empty(t, sender.events())
		})
	}

	assert.Equal(t, Stats{}, f.gw.Stats(), "refused connections hold no membership")
}

func TestGateway_AdmitLookupFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.identities.err = errors.New("mongo down")

	_, err := f.gw.Admit(context.Background(), f.token(t, "student-1", domain.PurposeSession), &fakeSender{})
	var hs *HandshakeError
	require.True(t, errors.As(err, &hs))
	assert.Equal(t, ReasonInvalidToken, hs.Reason)
}

func TestGateway_RefusedConnectionNeverReceivesBroadcasts(t *testing.T) {
	f := newGatewayFixture(t)
	refused := &fakeSender{}
	_, err := f.gw.Admit(context.Background(), f.token(t, "ghost", domain.PurposeSession), refused)
	require.Error(t, err)

	f.admit(t, "student-1")
	for _, room := range []RoomID{UserRoom("ghost"), RoleRoom(domain.RoleStudent), ChatRoom("app1")} {
		_, err := f.gw.Broadcast(room, "ping", nil)
		require.NoError(t, err)
	}
	assert.Empty(t, refused.events())
}

func TestGateway_JoinAndLeave(t *testing.T) {
	f := newGatewayFixture(t)
	conn, _ := f.admit(t, "student-1")

	require.NoError(t, f.gw.Join(conn.ID, ChatRoom("app1")))
	require.NoError(t, f.gw.Join(conn.ID, ChatRoom("app1")), "join is idempotent")
	assert.True(t, f.gw.Registry().IsMember(ChatRoom("app1"), conn.ID))

	assert.ErrorIs(t, f.gw.Join(conn.ID, UserRoom("student-2")), ErrRoomNotJoinable)
	assert.ErrorIs(t, f.gw.Join(conn.ID, RoomID("lobby")), ErrRoomNotJoinable)
	assert.ErrorIs(t, f.gw.Join("missing", ChatRoom("app1")), ErrConnectionNotFound)

	require.NoError(t, f.gw.Leave(conn.ID, ChatRoom("app1")))
	assert.False(t, f.gw.Registry().IsMember(ChatRoom("app1"), conn.ID))

	assert.ErrorIs(t, f.gw.Leave(conn.ID, UserRoom("student-1")), ErrRoomNotJoinable)
	assert.ErrorIs(t, f.gw.Leave(conn.ID, RoleRoom(domain.RoleStudent)), ErrRoomNotJoinable)
	assert.True(t, f.gw.Registry().IsMember(UserRoom("student-1"), conn.ID), "intrinsic membership kept")
}

func TestGateway_Broadcast(t *testing.T) {
	f := newGatewayFixture(t)
	c1, s1 := f.admit(t, "student-1")
	_, s2 := f.admit(t, "student-2")
	c3, s3 := f.admit(t, "employer-1")

	require.NoError(t, f.gw.Join(c1.ID, ChatRoom("app1")))
	require.NoError(t, f.gw.Join(c3.ID, ChatRoom("app1")))

	n, err := f.gw.Broadcast(ChatRoom("app1"), "new-message", map[string]string{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"new-message"}, s1.events())
	assert.Equal(t, []string{"new-message"}, s3.events())
	assert.Empty(t, s2.events())

	var body map[string]string
	require.NoError(t, json.Unmarshal(s1.last().Data, &body))
	assert.Equal(t, "hi", body["content"])

	n, err = f.gw.Broadcast(ChatRoom("empty"), "new-message", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.gw.BroadcastExcept(ChatRoom("app1"), c1.ID, "user-typing", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, s1.events(), 1)
	assert.Len(t, s3.events(), 2)
}

func TestGateway_BroadcastToSlowConsumer(t *testing.T) {
	f := newGatewayFixture(t)
	_, slow := f.admit(t, "student-1")
	_, fast := f.admit(t, "student-2")
	slow.full = true

	n, err := f.gw.Broadcast(RoleRoom(domain.RoleStudent), "announce", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, slow.events())
	assert.Equal(t, []string{"announce"}, fast.events())
}

func TestGateway_Emit(t *testing.T) {
	f := newGatewayFixture(t)
	c1, s1 := f.admit(t, "student-1")
	_, s2 := f.admit(t, "student-1")

	require.NoError(t, f.gw.Emit(c1.ID, EventError, ErrorPayload{Message: "boom"}))
	assert.Equal(t, []string{EventError}, s1.events())
	assert.Empty(t, s2.events(), "emit targets one connection, not the user room")

	assert.ErrorIs(t, f.gw.Emit("missing", EventError, nil), ErrConnectionNotFound)
}

func TestGateway_Disconnect(t *testing.T) {
	f := newGatewayFixture(t)
	conn, sender := f.admit(t, "student-1")
	require.NoError(t, f.gw.Join(conn.ID, ChatRoom("app1")))

	f.gw.Disconnect(conn.ID)
	f.gw.Disconnect(conn.ID)

	assert.Equal(t, StateDisconnected, conn.State())
	assert.Empty(t, f.gw.Registry().RoomsOf(conn.ID))
	assert.Equal(t, Stats{}, f.gw.Stats())

	_, ok := f.gw.Connection(conn.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, f.gw.Join(conn.ID, ChatRoom("app1")), ErrConnectionNotFound)

	n, err := f.gw.Broadcast(UserRoom("student-1"), "ping", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.events())
}

func TestGateway_Shutdown(t *testing.T) {
	f := newGatewayFixture(t)
	_, s1 := f.admit(t, "student-1")
	_, s2 := f.admit(t, "employer-1")

	f.gw.Shutdown()
	assert.True(t, s1.closed)
	assert.True(t, s2.closed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "AUTHENTICATED", StateAuthenticated.String())
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
