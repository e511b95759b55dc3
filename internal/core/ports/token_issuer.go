package ports

import (
	"time"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// TokenIssuer signs and verifies purpose-tagged, time-bounded tokens.
// Implementations are pure and safe for concurrent use.
type TokenIssuer interface {
	Issue(subjectID string, purpose domain.TokenPurpose, ttl time.Duration) (string, error)
	// Verify fails with domain.ErrTokenInvalid, domain.ErrTokenPurposeMismatch
	// or domain.ErrTokenExpired.
	Verify(token string, expected domain.TokenPurpose) (domain.TokenClaims, error)
}

// TokenVerifier is the verification half of TokenIssuer.
type TokenVerifier interface {
	Verify(token string, expected domain.TokenPurpose) (domain.TokenClaims, error)
}
