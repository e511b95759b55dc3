package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

func TestRoomID_Kind(t *testing.T) {
	tests := []struct {
		room      RoomID
		kind      string
		intrinsic bool
	}{
		{room: UserRoom("u1"), kind: KindUser, intrinsic: true},
		{room: RoleRoom(domain.RoleEmployer), kind: KindRole, intrinsic: true},
		{room: ChatRoom("app1"), kind: KindChat, intrinsic: false},
		{room: RoomID("chat:"), kind: "", intrinsic: false},
		{room: RoomID("lobby"), kind: "", intrinsic: false},
	}
	for _, tt := range tests {
		t.Run(string(tt.room), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.room.Kind())
			assert.Equal(t, tt.intrinsic, tt.room.Intrinsic())
		})
	}
	assert.Equal(t, RoomID("role:STUDENT"), RoleRoom(domain.RoleStudent))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry(4)

	assert.True(t, r.Join(ChatRoom("app1"), "c1"))
	assert.False(t, r.Join(ChatRoom("app1"), "c1"))

	assert.ElementsMatch(t, []string{"c1"}, r.Members(ChatRoom("app1")))
	assert.Equal(t, []RoomID{ChatRoom("app1")}, r.RoomsOf("c1"))
	assert.Equal(t, 1, r.RoomCount())
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry(4)
	r.Join(ChatRoom("app1"), "c1")
	r.Join(ChatRoom("app1"), "c2")

	assert.True(t, r.Leave(ChatRoom("app1"), "c1"))
	assert.False(t, r.Leave(ChatRoom("app1"), "c1"))
	assert.False(t, r.Leave(ChatRoom("nope"), "c1"))

	assert.ElementsMatch(t, []string{"c2"}, r.Members(ChatRoom("app1")))
	assert.Empty(t, r.RoomsOf("c1"))
}

func TestRegistry_DropRemovesEveryMembership(t *testing.T) {
	r := NewRegistry(4)
	rooms := []RoomID{UserRoom("u1"), RoleRoom(domain.RoleStudent), ChatRoom("a"), ChatRoom("b")}
	for _, room := range rooms {
		r.Join(room, "c1")
	}
	r.Join(ChatRoom("a"), "c2")

	dropped := r.Drop("c1")
	assert.ElementsMatch(t, rooms, dropped)

	for _, room := range rooms {
		assert.False(t, r.IsMember(room, "c1"), "still in %s", room)
	}
	assert.ElementsMatch(t, []string{"c2"}, r.Members(ChatRoom("a")))
	assert.Equal(t, 1, r.RoomCount(), "empty rooms are pruned")

	assert.Empty(t, r.Drop("c1"), "second drop is a no-op")
	assert.Empty(t, r.Drop("never-seen"))
}

func TestRegistry_EmptyRoom(t *testing.T) {
	r := NewRegistry(0)
	assert.Empty(t, r.Members(ChatRoom("ghost")))
	assert.False(t, r.IsMember(ChatRoom("ghost"), "c1"))
	assert.Len(t, r.rooms, defaultShards)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(8)
	const conns = 50
	const roomsPerConn = 20

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			for j := 0; j < roomsPerConn; j++ {
				r.Join(ChatRoom(fmt.Sprintf("app%d", j)), id)
			}
			if i%2 == 0 {
				r.Drop(id)
			}
		}(i)
	}
	wg.Wait()

	for j := 0; j < roomsPerConn; j++ {
		members := r.Members(ChatRoom(fmt.Sprintf("app%d", j)))
		require.Len(t, members, conns/2)
	}
	for i := 0; i < conns; i += 2 {
		assert.Empty(t, r.RoomsOf(fmt.Sprintf("c%d", i)))
	}
}
