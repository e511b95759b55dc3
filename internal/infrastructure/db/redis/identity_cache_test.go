package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

type stubLookup struct {
	calls int
	users map[string]*domain.User
}

func (s *stubLookup) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.calls++
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdentityCache_FallsBackWhenRedisIsDown(t *testing.T) {
	lookup := &stubLookup{users: map[string]*domain.User{
		"u1": {ID: "u1", Role: domain.RoleStudent, IsActive: true},
	}}
	cache := NewIdentityCache(unreachable(t), lookup, time.Minute, zerolog.Nop())

	user, err := cache.FindByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "u1" || lookup.calls != 1 {
		t.Fatalf("expected lookup to serve u1, got %+v after %d calls", user, lookup.calls)
	}
}

func TestIdentityCache_PropagatesNotFound(t *testing.T) {
	lookup := &stubLookup{users: map[string]*domain.User{}}
	cache := NewIdentityCache(unreachable(t), lookup, 0, zerolog.Nop())

	_, err := cache.FindByID(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if cache.ttl != defaultIdentityTTL {
		t.Fatalf("expected default ttl, got %v", cache.ttl)
	}
}

func TestIdentityCache_Key(t *testing.T) {
	cache := &IdentityCache{}
	if got := cache.key("abc"); got != "identity:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}
