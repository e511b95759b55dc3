package domain

import "time"

// TokenPurpose tags what a signed token may be used for. A token verified
// for one purpose is always rejected where another purpose is expected.
type TokenPurpose string

const (
	PurposeSession       TokenPurpose = "SESSION"
	PurposePasswordReset TokenPurpose = "PASSWORD_RESET"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == PurposeSession || p == PurposePasswordReset
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	SubjectID string
	Purpose   TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}
