package domain

import (
	"errors"
	"fmt"
)

// Root error kinds. Every error the core returns wraps exactly one of them,
// and the transport layers map on the root with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("access forbidden")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrUserExists         = fmt.Errorf("%w: user with this email already exists", ErrConflict)
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrInvalidRole        = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password must not be empty", ErrValidation)
)

var (
	ErrTokenInvalid         = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrTokenExpired         = fmt.Errorf("%w: token expired", ErrAuthentication)
	ErrTokenPurposeMismatch = fmt.Errorf("%w: token purpose mismatch", ErrAuthentication)
)

var (
	ErrApplicationNotFound = fmt.Errorf("%w: application not found", ErrNotFound)
	ErrInvalidStatus       = fmt.Errorf("%w: unknown application status", ErrValidation)
)
