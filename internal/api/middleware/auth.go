package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
)

// Context keys injected by Auth.
const (
	SubjectKey = "subject_id"
	RoleKey    = "role"
)

// Auth verifies the bearer SESSION token, loads the identity behind it and
// injects its id and role into the context. Missing or inactive identities
// are rejected like a bad token.
func Auth(tokens ports.TokenVerifier, identities ports.IdentityLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access denied. No token provided.")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := tokens.Verify(parts[1], domain.PurposeSession)
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			user, err := identities.FindByID(c.Request().Context(), claims.SubjectID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				return err
			}
			if !user.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "account is deactivated")
			}

			c.Set(SubjectKey, user.ID)
			c.Set(RoleKey, string(user.Role))

			return next(c)
		}
	}
}
