package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathfinder/identity-gateway/internal/api/middleware"
)

// ctxSubject extracts the subject injected by the Auth middleware. A missing
// subject means the route was mounted without Auth; reject with 401.
func ctxSubject(c echo.Context) (string, error) {
	subjectID, _ := c.Get(middleware.SubjectKey).(string)
	if subjectID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subjectID, nil
}
