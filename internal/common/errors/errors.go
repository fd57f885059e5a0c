// Package errors provides the standardized error taxonomy for the dialogue
// pipeline and its collaborators.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeMalformedExtraction       ErrorCode = "MALFORMED_EXTRACTION"
	ErrCodeClassificationUnavailable ErrorCode = "CLASSIFICATION_UNAVAILABLE"
	ErrCodeClassificationTimeout     ErrorCode = "CLASSIFICATION_TIMEOUT"

	ErrCodeRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"
	ErrCodeRetrievalTimeout     ErrorCode = "RETRIEVAL_TIMEOUT"

	ErrCodeRiskAssessmentFailure ErrorCode = "RISK_ASSESSMENT_FAILURE"

	ErrCodeToolArgument  ErrorCode = "TOOL_ARGUMENT_ERROR"
	ErrCodeUnknownTool   ErrorCode = "UNKNOWN_TOOL"
	ErrCodeToolExecution ErrorCode = "TOOL_EXECUTION_FAILED"

	ErrCodeComposerFailed  ErrorCode = "COMPOSER_FAILED"
	ErrCodeComposerTimeout ErrorCode = "COMPOSER_TIMEOUT"

	ErrCodeSessionStore ErrorCode = "SESSION_STORE_ERROR"

	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeConfiguration          ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeExternalService        ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func NewMalformedExtractionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedExtraction,
		Message:   "Entity extraction produced invalid spans",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewClassificationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationUnavailable,
		Message:   "Intent classification unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewClassificationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationTimeout,
		Message:   "Intent classification timed out",
		Details:   "stage exceeded its configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRetrievalUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalUnavailable,
		Message:   "Context retrieval unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRetrievalTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalTimeout,
		Message:   "Context retrieval timed out",
		Details:   "stage exceeded its configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRiskAssessmentFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRiskAssessmentFailure,
		Message:   "Risk assessment failed; turn refused fail-safe",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewToolArgumentError(toolName string, fieldErrors []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolArgument,
		Message:   "Tool arguments failed schema validation",
		Details:   fmt.Sprintf("tool: %s, violations: %s", toolName, strings.Join(fieldErrors, "; ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"toolName": toolName, "violations": fieldErrors},
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownToolError(toolName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTool,
		Message:   "Tool is not registered",
		Details:   fmt.Sprintf("toolName: %s", toolName),
		Retryable: false,
		Metadata:  map[string]interface{}{"toolName": toolName},
		Timestamp: time.Now().UTC(),
	}
}

func NewToolExecutionError(toolName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolExecution,
		Message:   "Tool execution failed",
		Details:   fmt.Sprintf("tool: %s, error: %s", toolName, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"toolName": toolName},
		Timestamp: time.Now().UTC(),
	}
}

func NewComposerFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeComposerFailed,
		Message:   "Reply composition failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewComposerTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeComposerTimeout,
		Message:   "Reply composition timed out",
		Details:   "composer exceeded its configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStore,
		Message:   "Session store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(component string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Component '%s' timeout", component),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Crisis notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from any error, unwrapping as needed.
// Non-standard errors report INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err normalizes to the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeClassificationUnavailable,
		ErrCodeRetrievalUnavailable,
		ErrCodeComposerFailed,
		ErrCodeSessionStore,
		ErrCodeExternalService,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	case ErrCodeClassificationTimeout,
		ErrCodeRetrievalTimeout,
		ErrCodeTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeComposerTimeout,
		ErrCodeToolExecution:
		return 1

	default:
		return 0 // Policy errors: no retry, the manager degrades instead
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RISK"):
		return "SAFETY"
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "EXTRACTION"):
		return "CLASSIFICATION"
	case strings.Contains(codeStr, "RETRIEVAL"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "TOOL"):
		return "TOOLS"
	case strings.Contains(codeStr, "COMPOSER"):
		return "COMPOSER"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "CONFIGURATION"):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}
