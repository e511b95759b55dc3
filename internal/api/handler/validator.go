package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/pkg/validation"
)

// echoValidator wraps the shared validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validation.Validator
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
func NewValidator() echo.Validator {
	return &echoValidator{v: validation.New()}
}

// Validate satisfies the echo.Validator interface.
func (ev *echoValidator) Validate(i any) error {
	return ev.v.Struct(i)
}

// validationFailed renders the 400 envelope with one entry per failing field.
func validationFailed(c echo.Context, err error) error {
	errs := []string{err.Error()}
	if errors.Is(err, domain.ErrValidation) {
		errs = strings.Split(validation.Message(err), "; ")
	}
	return c.JSON(http.StatusBadRequest, response{Message: "Validation failed", Errors: errs})
}

func invalidPayload(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, response{Message: "invalid payload"})
}
