package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies engine errors.
type ErrorType string

const (
	ErrorTypeConfigAbsent       ErrorType = "CONFIG_ABSENT"
	ErrorTypePlayback           ErrorType = "PLAYBACK_ERROR"
	ErrorTypeAudioSourceMissing ErrorType = "AUDIO_SOURCE_MISSING"
	ErrorTypeTimingPrecondition ErrorType = "TIMING_PRECONDITION"
	ErrorTypeTimeout            ErrorType = "TIMEOUT"
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError represents an error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// NewConfigAbsentError reports a level without a video configuration.
func NewConfigAbsentError(levelID string) *AppError {
	return New(ErrorTypeConfigAbsent, "no video configured", http.StatusNotFound).
		WithDetails(map[string]interface{}{"level_id": levelID})
}

// NewPlaybackError wraps an error surfaced by the media backend.
func NewPlaybackError(backendMessage string) *AppError {
	return New(ErrorTypePlayback, backendMessage, http.StatusInternalServerError)
}

func NewAudioSourceMissingError(waited time.Duration) *AppError {
	return New(ErrorTypeAudioSourceMissing, fmt.Sprintf("audio source not found after %s", waited), http.StatusServiceUnavailable)
}

// NewTimingPreconditionError reports a start that cannot be honored, such
// as a slowed-down song with a positive start offset.
func NewTimingPreconditionError(message string) *AppError {
	return New(ErrorTypeTimingPrecondition, message, http.StatusConflict)
}

func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message, http.StatusRequestTimeout)
}

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// GetAppError extracts an AppError anywhere in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == t
}
