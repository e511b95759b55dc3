package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/token"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubCredentialStore struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	nextID  int
	findErr error
}

func newStubCredentialStore() *stubCredentialStore {
	return &stubCredentialStore{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubCredentialStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubCredentialStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubCredentialStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	created := cloneUser(user)
	created.ID = fmt.Sprintf("user-%d", r.nextID)
	r.byID[created.ID] = cloneUser(created)
	return created, nil
}

func (r *stubCredentialStore) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *stubCredentialStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *stubCredentialStore) setActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].IsActive = active
}

type stubNotifier struct {
	jobs []ports.PasswordReset
}

func (n *stubNotifier) Enqueue(job ports.PasswordReset) {
	n.jobs = append(n.jobs, job)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type authFixture struct {
	svc      *AuthService
	store    *stubCredentialStore
	hasher   *PasswordHasher
	issuer   *token.Issuer
	notifier *stubNotifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	issuer, err := token.NewIssuer("secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	store := newStubCredentialStore()
	notifier := &stubNotifier{}
	hasher := NewPasswordHasher(bcrypt.MinCost)
	svc := NewAuthService(store, issuer, hasher, notifier,
		AuthConfig{SessionTTL: time.Hour, ResetTTL: time.Minute}, zerolog.Nop())
	return &authFixture{svc: svc, store: store, issuer: issuer, hasher: hasher, notifier: notifier}
}

func registerInput(email string) ports.RegisterInput {
	return ports.RegisterInput{
		Email:     email,
		Password:  "pass123",
		FirstName: "Asha",
		LastName:  "Rao",
		Role:      domain.RoleStudent,
	}
}

func (f *authFixture) register(t *testing.T, email string) *domain.AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), registerInput(email))
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestAuthService_Register_Success(t *testing.T) {
	f := newAuthFixture(t)

	res := f.register(t, "  A@X.com ")
	if res.User == nil || res.Token == "" {
		t.Fatalf("expected user and token, got %+v", res)
	}
	if res.User.PasswordHash != "" {
		t.Fatalf("returned identity must not carry the hash")
	}
	if res.User.Email != "a@x.com" {
		t.Fatalf("expected normalised email, got %q", res.User.Email)
	}
	if !res.User.IsActive {
		t.Fatalf("new accounts are active")
	}

	stored, _ := f.store.FindByID(context.Background(), res.User.ID)
	if stored.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	claims, err := f.issuer.Verify(res.Token, domain.PurposeSession)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.SubjectID != res.User.ID {
		t.Fatalf("token subject %q, want %q", claims.SubjectID, res.User.ID)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := newAuthFixture(t)

	f.register(t, "a@x.com")
	_, err := f.svc.Register(context.Background(), registerInput("a@x.com"))
	if !errors.Is(err, domain.ErrUserExists) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput("")
	if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty email, got %v", err)
	}

	in = registerInput("b@x.com")
	in.Role = "SUPERUSER"
	if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAuthService_Register_StoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.store.findErr = errors.New("connection refused")

	_, err := f.svc.Register(context.Background(), registerInput("a@x.com"))
	if err == nil || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected a server error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")

	res, err := f.svc.Login(context.Background(), "A@x.com", "pass123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" || res.User.ID != reg.User.ID {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if res.User.LastLoginAt == nil {
		t.Fatalf("expected lastLoginAt on returned identity")
	}
	stored, _ := f.store.FindByID(context.Background(), reg.User.ID)
	if stored.LastLoginAt == nil {
		t.Fatalf("expected lastLoginAt to be persisted")
	}
}

func TestAuthService_Login_UnknownEmailRunsBcrypt(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), "nobody@x.com", "anything")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if f.hasher.dummy == nil {
		t.Fatalf("expected an unknown email to cost a bcrypt comparison")
	}
	if cost, err := bcrypt.Cost(f.hasher.dummy); err != nil || cost != bcrypt.MinCost {
		t.Fatalf("expected throwaway hash at cost %d, got %d (%v)", bcrypt.MinCost, cost, err)
	}
}

func TestAuthService_Login_NoEnumeration(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")
	f.register(t, "inactive@x.com")

	inactive, _ := f.store.FindByEmail(context.Background(), "inactive@x.com")
	f.store.setActive(inactive.ID, false)

	_, wrongPass := f.svc.Login(context.Background(), "a@x.com", "wrongpass")
	_, unknown := f.svc.Login(context.Background(), "nobody@x.com", "anything")
	_, disabled := f.svc.Login(context.Background(), "inactive@x.com", "pass123")

	for name, err := range map[string]error{"wrong password": wrongPass, "unknown": unknown, "inactive": disabled} {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if wrongPass.Error() != unknown.Error() || unknown.Error() != disabled.Error() {
		t.Fatalf("messages differ: %q / %q / %q", wrongPass, unknown, disabled)
	}

	stored, _ := f.store.FindByID(context.Background(), reg.User.ID)
	if stored.LastLoginAt != nil {
		t.Fatalf("failed login must not stamp lastLoginAt")
	}
}

// ---------------------------------------------------------------------------
// Refresh / profile / logout
// ---------------------------------------------------------------------------

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")

	tok, err := f.svc.Refresh(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.issuer.Verify(tok, domain.PurposeSession); err != nil {
		t.Fatalf("refreshed token invalid: %v", err)
	}

	f.store.setActive(reg.User.ID, false)
	if _, err := f.svc.Refresh(context.Background(), reg.User.ID); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for inactive user, got %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), "ghost"); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for missing user, got %v", err)
	}
}

func TestAuthService_ProfileAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")

	u, err := f.svc.Profile(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if u.PasswordHash != "" || u.Email != "a@x.com" {
		t.Fatalf("unexpected profile: %+v", u)
	}
	if _, err := f.svc.Profile(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := f.svc.Logout(context.Background(), reg.User.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.issuer.Verify(reg.Token, domain.PurposeSession); err != nil {
		t.Fatalf("token must remain valid after logout: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Passwords
// ---------------------------------------------------------------------------

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, reg.User.ID, "wrong", "newpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, reg.User.ID, "pass123", "newpass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "pass123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "newpass"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "nobody@x.com"); err != nil {
		t.Fatalf("unknown email must succeed silently, got %v", err)
	}
	if len(f.notifier.jobs) != 0 {
		t.Fatalf("no delivery expected for unknown email")
	}

	if err := f.svc.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(f.notifier.jobs) != 1 {
		t.Fatalf("expected one delivery job, got %d", len(f.notifier.jobs))
	}
	job := f.notifier.jobs[0]
	if job.Email != "a@x.com" || job.UserID != reg.User.ID {
		t.Fatalf("unexpected job: %+v", job)
	}
	claims, err := f.issuer.Verify(job.Token, domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("reset token invalid: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != time.Minute {
		t.Fatalf("reset ttl = %v, want 1m", got)
	}
}

func TestAuthService_CompletePasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com")
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resetToken := f.notifier.jobs[0].Token

	if err := f.svc.CompletePasswordReset(ctx, resetToken, "brandnew"); err != nil {
		t.Fatalf("complete reset: %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "brandnew"); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
}

func TestAuthService_CompletePasswordReset_RejectsSessionToken(t *testing.T) {
	f := newAuthFixture(t)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	err := f.svc.CompletePasswordReset(ctx, reg.Token, "newpass")
	if !errors.Is(err, domain.ErrTokenPurposeMismatch) {
		t.Fatalf("expected ErrTokenPurposeMismatch, got %v", err)
	}
	if err := f.svc.CompletePasswordReset(ctx, "garbage", "newpass"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "pass123"); err != nil {
		t.Fatalf("password must be unchanged: %v", err)
	}
}
