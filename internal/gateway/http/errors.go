// Package http is the HTTP boundary: route registration, request
// decoding, and the translation from service errors to status codes.
// Full error detail goes to the log; clients only ever see the generic
// message for their failure class.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/datagateway/authgate/internal/gateway/icat"
	"github.com/datagateway/authgate/internal/gateway/oidc"
	"github.com/datagateway/authgate/internal/gateway/service"
	"github.com/datagateway/authgate/pkg/httpx"
	"github.com/datagateway/authgate/pkg/slogx"
)

// errorStatus maps a service-layer error to the response status and the
// client-facing message. Handlers may substitute a route-specific
// message for 403s.
func errorStatus(err error) (int, string) {
	var authErr *icat.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		// The upstream provider's own message is safe to show: it is
		// what the facility wants users to see on bad credentials.
		return http.StatusForbidden, authErr.Message
	case errors.Is(err, oidc.ErrProviderNotFound):
		return http.StatusNotFound, "Unknown OIDC provider"
	case errors.Is(err, oidc.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusForbidden, "Invalid JWT token provided"
	case errors.Is(err, service.ErrBlacklistedToken),
		errors.Is(err, service.ErrUsernameMismatch),
		errors.Is(err, service.ErrRefresh):
		return http.StatusForbidden, "Unable to refresh access token"
	case errors.Is(err, service.ErrNotAdmin):
		return http.StatusForbidden, "Unable to update maintenance state"
	case errors.Is(err, service.ErrMaintenanceFile):
		return http.StatusInternalServerError, "Failed to read or update maintenance state"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeError logs the full error and responds with the translated
// status and message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	logError(r, status, err)
	httpx.WriteDetail(w, status, message)
}

// writeErrorMessage is writeError with a route-specific message
// overriding the default for non-5xx statuses.
func writeErrorMessage(w http.ResponseWriter, r *http.Request, err error, message string) {
	status, fallback := errorStatus(err)
	if status >= http.StatusInternalServerError {
		message = fallback
	}
	logError(r, status, err)
	httpx.WriteDetail(w, status, message)
}

func logError(r *http.Request, status int, err error) {
	l := slogx.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
		return
	}
	l.Info("request rejected", slog.Int("status", status), slog.String("error", err.Error()))
}
