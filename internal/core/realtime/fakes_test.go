package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/token"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []Envelope
	full   bool
	closed bool
}

func (s *fakeSender) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full || s.closed {
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	s.frames = append(s.frames, env)
	return true
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSender) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Event)
	}
	return out
}

func (s *fakeSender) last() Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Envelope{}
	}
	return s.frames[len(s.frames)-1]
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

type stubIdentities struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func (s *stubIdentities) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

type gatewayFixture struct {
	gw         *Gateway
	issuer     *token.Issuer
	identities *stubIdentities
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	issuer, err := token.NewIssuer("realtime-secret")
	require.NoError(t, err)

	ids := &stubIdentities{users: map[string]*domain.User{
		"student-1":  {ID: "student-1", Role: domain.RoleStudent, IsActive: true},
		"student-2":  {ID: "student-2", Role: domain.RoleStudent, IsActive: true},
		"employer-1": {ID: "employer-1", Role: domain.RoleEmployer, IsActive: true},
		"inactive":   {ID: "inactive", Role: domain.RoleStudent, IsActive: false},
	}}
	return &gatewayFixture{
		gw:         NewGateway(issuer, ids, NewRegistry(4), zerolog.Nop()),
		issuer:     issuer,
		identities: ids,
	}
}

func (f *gatewayFixture) token(t *testing.T, subject string, purpose domain.TokenPurpose) string {
	t.Helper()
	raw, err := f.issuer.Issue(subject, purpose, time.Hour)
	require.NoError(t, err)
	return raw
}

func (f *gatewayFixture) admit(t *testing.T, subject string) (*Connection, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	conn, err := f.gw.Admit(context.Background(), f.token(t, subject, domain.PurposeSession), sender)
	require.NoError(t, err)
	return conn, sender
}
