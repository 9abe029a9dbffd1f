package rest

import (
	"net/http"

	"ideagraph-backend/pkg/api"
	appErrors "ideagraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// statusClientClosedRequest reports a request the client abandoned.
const statusClientClosedRequest = 499

// statusFor maps an application error type to an HTTP status.
func statusFor(errType appErrors.ErrorType) int {
	switch errType {
	case appErrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case appErrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case appErrors.ErrorTypeState:
		return http.StatusConflict
	case appErrors.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case appErrors.ErrorTypeCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError writes err as a JSON error body. Internal errors are
// logged and their details hidden from the client.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	errType := appErrors.TypeOf(err)
	status := statusFor(errType)

	message := err.Error()
	if appErr := appErrors.As(err); appErr != nil {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("type", string(errType)),
			zap.Error(err),
		)
		if errType == appErrors.ErrorTypeInternal {
			message = "internal server error"
		}
	}

	api.Error(w, status, string(errType), message)
}
