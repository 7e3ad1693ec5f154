package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/checkout"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/payment"
	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/validation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// statusOf maps domain errors onto HTTP statuses.
func statusOf(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, new(*validation.Error)),
		errors.Is(err, backend.ErrValidation),
		errors.Is(err, checkout.ErrInvalidStep),
		errors.Is(err, checkout.ErrIntentMismatch),
		errors.Is(err, practice.ErrEmptyAnswer),
		errors.Is(err, practice.ErrChallengeMismatch),
		errors.Is(err, practice.ErrUnknownChallengeType),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, checkout.ErrPaymentNotSucceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrNotFound),
		errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, payment.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrNoHearts), errors.Is(err, practice.ErrNoHearts),
		errors.Is(err, backend.ErrConflict), errors.Is(err, checkout.ErrWrongStep):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrCourseUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Server errors are logged and
// their detail hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	resp := ErrorResponse{Error: err.Error(), Fields: fieldsOf(err)}
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		logger.WithComponent("http").Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		resp = ErrorResponse{Error: http.StatusText(status)}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func fieldsOf(err error) map[string][]string {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		out := make(map[string][]string, len(vErr.Fields))
		for k, v := range vErr.Fields {
			out[k] = []string{v}
		}
		return out
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// currentUser returns the authenticated user. Routes using it sit behind
// middleware.RequireRole, so the user is always present there.
func currentUser(c *gin.Context) auth.User {
	u, _ := auth.UserFrom(c.Request.Context())
	return u
}
