// internal/common/errors/handler.go
package errors

import (
	"errors"
	"time"
)

// ErrorHandler normalizes and logs pipeline errors in one place so every
// stage failure carries the same structured fields.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err to a StandardError and logs it with its category
// and retry budget. Degradable errors (the manager falls back instead of
// failing the turn) log at warn level. Extra fields, such as the
// conversation id, are merged into the log entry.
func (h *ErrorHandler) Handle(stage string, err error, extra map[string]interface{}) *StandardError {
	stdErr := h.normalizeError(err)

	fields := map[string]interface{}{
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range extra {
		fields[k] = v
	}

	if IsDegradable(stdErr.Code) {
		h.logger.Warn("stage degraded", fields)
	} else {
		h.logger.Error("stage failed", fields)
	}
	return stdErr
}

// IsDegradable reports whether the manager may absorb this failure into a
// degraded policy decision instead of surfacing it.
func IsDegradable(code ErrorCode) bool {
	switch code {
	case ErrCodeMalformedExtraction,
		ErrCodeClassificationUnavailable,
		ErrCodeClassificationTimeout,
		ErrCodeRetrievalUnavailable,
		ErrCodeRetrievalTimeout,
		ErrCodeToolArgument,
		ErrCodeToolExecution,
		ErrCodeComposerFailed,
		ErrCodeComposerTimeout,
		ErrCodeNotificationSendFailed:
		return true
	}
	return false
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
