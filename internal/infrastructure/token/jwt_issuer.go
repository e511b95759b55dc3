// Package token implements the stateless signer/verifier for session and
// password-reset tokens on top of HS256 JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// ErrEmptySecret is returned by NewIssuer when no signing secret is given.
var ErrEmptySecret = errors.New("token: signing secret must not be empty")

type claims struct {
	Purpose domain.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a process-wide secret. It holds no
// mutable state and is safe for concurrent use.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	i := &Issuer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for subjectID valid for ttl.
func (i *Issuer) Issue(subjectID string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown token purpose %q", domain.ErrValidation, purpose)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: token ttl must be positive", domain.ErrValidation)
	}

	now := i.now()
	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry(now, ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// expiry rounds now+ttl up to the whole second the exp claim can carry, so a
// token never lapses before its full ttl has elapsed.
func expiry(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// Verify checks the signature first, then the purpose, then expiry. A token
// of the wrong purpose is reported as a mismatch whether or not it expired.
func (i *Issuer) Verify(raw string, expected domain.TokenPurpose) (domain.TokenClaims, error) {
	if raw == "" {
		return domain.TokenClaims{}, domain.ErrTokenInvalid
	}

	var c claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	tkn, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !tkn.Valid {
		return domain.TokenClaims{}, domain.ErrTokenInvalid
	}
	if c.Subject == "" || !c.Purpose.Valid() || c.ExpiresAt == nil || c.IssuedAt == nil {
		return domain.TokenClaims{}, domain.ErrTokenInvalid
	}

	if c.Purpose != expected {
		return domain.TokenClaims{}, domain.ErrTokenPurposeMismatch
	}

	out := domain.TokenClaims{
		SubjectID: c.Subject,
		Purpose:   c.Purpose,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if i.now().After(out.ExpiresAt) {
		return domain.TokenClaims{}, domain.ErrTokenExpired
	}
	return out, nil
}
