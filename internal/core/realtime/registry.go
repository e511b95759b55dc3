package realtime

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

const defaultShards = 32

// RoomID names a multicast group of connections.
type RoomID string

// Room kinds.
const (
	KindUser = "user"
	KindRole = "role"
	KindChat = "chat"
)

func UserRoom(subjectID string) RoomID { return RoomID(KindUser + ":" + subjectID) }
func RoleRoom(role domain.Role) RoomID { return RoomID(KindRole + ":" + string(role)) }
func ChatRoom(applicationID string) RoomID { return RoomID(KindChat + ":" + applicationID) }

// Kind returns the prefix before the first colon, or "" for a malformed id.
func (r RoomID) Kind() string {
	kind, rest, ok := strings.Cut(string(r), ":")
	if !ok || rest == "" {
		return ""
	}
	return kind
}

// Intrinsic reports whether membership in r is managed by the gateway only.
func (r RoomID) Intrinsic() bool {
	k := r.Kind()
	return k == KindUser || k == KindRole
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[RoomID]map[string]struct{}
}

type connShard struct {
	mu    sync.Mutex
	conns map[string]map[RoomID]struct{}
}

// Registry maps rooms to connection ids and back. Both indexes are striped
// by an fnv hash so that operations on disjoint rooms take different locks.
// A call never holds more than one stripe lock at a time. Callers serialize
// membership changes for a single connection.
type Registry struct {
	rooms []*roomShard
	conns []*connShard
}

// NewRegistry creates a Registry with the given number of lock stripes.
// If shards <= 0, defaultShards is used.
func NewRegistry(shards int) *Registry {
	if shards <= 0 {
		shards = defaultShards
	}
	r := &Registry{
		rooms: make([]*roomShard, shards),
		conns: make([]*connShard, shards),
	}
	for i := 0; i < shards; i++ {
		r.rooms[i] = &roomShard{rooms: make(map[RoomID]map[string]struct{})}
		r.conns[i] = &connShard{conns: make(map[string]map[RoomID]struct{})}
	}
	return r
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func (r *Registry) roomShard(room RoomID) *roomShard {
	return r.rooms[shardIndex(string(room), len(r.rooms))]
}

func (r *Registry) connShard(connID string) *connShard {
	return r.conns[shardIndex(connID, len(r.conns))]
}

// Join adds connID to room. It reports false if the connection was already
// a member.
func (r *Registry) Join(room RoomID, connID string) bool {
	rs := r.roomShard(room)
	rs.mu.Lock()
	members, ok := rs.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		rs.rooms[room] = members
	}
	_, exists := members[connID]
	members[connID] = struct{}{}
	rs.mu.Unlock()

	if exists {
		return false
	}

	cs := r.connShard(connID)
	cs.mu.Lock()
	rooms, ok := cs.conns[connID]
	if !ok {
		rooms = make(map[RoomID]struct{})
		cs.conns[connID] = rooms
	}
	rooms[room] = struct{}{}
	cs.mu.Unlock()
	return true
}

// Leave removes connID from room. It reports false if it was not a member.
func (r *Registry) Leave(room RoomID, connID string) bool {
	if !r.removeMember(room, connID) {
		return false
	}

	cs := r.connShard(connID)
	cs.mu.Lock()
	if rooms, ok := cs.conns[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(cs.conns, connID)
		}
	}
	cs.mu.Unlock()
	return true
}

// Drop removes connID from every room it belongs to and returns those rooms.
// Dropping an unknown connection is a no-op.
func (r *Registry) Drop(connID string) []RoomID {
	cs := r.connShard(connID)
	cs.mu.Lock()
	rooms := cs.conns[connID]
	delete(cs.conns, connID)
	cs.mu.Unlock()

	dropped := make([]RoomID, 0, len(rooms))
	for room := range rooms {
		r.removeMember(room, connID)
		dropped = append(dropped, room)
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })
	return dropped
}

func (r *Registry) removeMember(room RoomID, connID string) bool {
	rs := r.roomShard(room)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	members, ok := rs.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(rs.rooms, room)
	}
	return true
}

// Members returns a snapshot of the connection ids in room.
func (r *Registry) Members(room RoomID) []string {
	rs := r.roomShard(room)
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	members := rs.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// IsMember reports whether connID is currently in room.
func (r *Registry) IsMember(room RoomID, connID string) bool {
	rs := r.roomShard(room)
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.rooms[room][connID]
	return ok
}

// RoomsOf returns the rooms connID belongs to, sorted.
func (r *Registry) RoomsOf(connID string) []RoomID {
	cs := r.connShard(connID)
	cs.mu.Lock()
	out := make([]RoomID, 0, len(cs.conns[connID]))
	for room := range cs.conns[connID] {
		out = append(out, room)
	}
	cs.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	n := 0
	for _, rs := range r.rooms {
		rs.mu.RLock()
		n += len(rs.rooms)
		rs.mu.RUnlock()
	}
	return n
}
