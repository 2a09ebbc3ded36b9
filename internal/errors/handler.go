package errors

import (
	"encoding/json"
	"net/http"

	"github.com/zsiec/theater/internal/logger"
)

// ErrorResponse is the JSON body written for failed status requests.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler logs engine errors at a level matching their type and
// renders them for the status API.
type ErrorHandler struct {
	logger logger.Logger
}

func NewErrorHandler(l logger.Logger) *ErrorHandler {
	return &ErrorHandler{logger: l}
}

// Report logs err without writing a response. Plain errors are treated as
// internal.
func (h *ErrorHandler) Report(err error) *AppError {
	if err == nil {
		return nil
	}
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "unexpected error")
	}

	entry := h.logger.WithFields(map[string]interface{}{
		"error_type": appErr.Type,
		"error_code": appErr.Code,
	})
	if len(appErr.Details) > 0 {
		entry = entry.WithFields(appErr.Details)
	}

	switch appErr.Type {
	case ErrorTypeInternal, ErrorTypePlayback:
		entry.Error(appErr.Error())
	case ErrorTypeAudioSourceMissing, ErrorTypeTimingPrecondition, ErrorTypeTimeout:
		entry.Warn(appErr.Error())
	default:
		entry.Info(appErr.Error())
	}
	return appErr
}

// HandleError reports err and writes it as JSON.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := h.Report(err)
	traceID := r.Header.Get("X-Request-ID")

	response := ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
		TraceID: traceID,
	}

	w.Header().Set("Content-Type", "application/json")
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

// Middleware recovers panics raised by status handlers.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.logger.WithFields(map[string]interface{}{
					"panic":  recovered,
					"method": r.Method,
					"path":   r.URL.Path,
				}).Error("Panic recovered in HTTP handler")
				h.HandleError(w, r, NewInternalError("An unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
