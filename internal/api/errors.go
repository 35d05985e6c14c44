package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/banking/compliance-engine/internal/domain"
)

// errorResponse maps engine error kinds to HTTP statuses. Policy violations
// are 422: the request was well formed, the action is just not allowed.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindInvalidStateTransition:
		status = http.StatusConflict
	case domain.KindPolicyViolation:
		status = http.StatusUnprocessableEntity
	case domain.KindDependencyUnavailable:
		status = http.StatusServiceUnavailable
	case domain.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	body := map[string]string{"error": err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	return c.JSON(status, body)
}
