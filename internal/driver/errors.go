package driver

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the driver's suspension points and resource
// limits.
var (
	ErrMaxIterations    = errors.New("driver: max iterations exceeded")
	ErrContextCancelled = errors.New("driver: context cancelled")
	ErrToolNotFound     = errors.New("driver: tool not found")
	ErrToolTimeout      = errors.New("driver: tool execution timed out")
	ErrToolPanic        = errors.New("driver: tool panicked")
	ErrSessionBusy      = errors.New("driver: session already has a Send in flight")
)

// ToolErrorType classifies a tool execution failure for retry and
// audit-logging purposes.
type ToolErrorType string

const (
	ToolErrNotFound     ToolErrorType = "not_found"
	ToolErrInvalidInput ToolErrorType = "invalid_input"
	ToolErrTimeout      ToolErrorType = "timeout"
	ToolErrNetwork      ToolErrorType = "network"
	ToolErrPermission   ToolErrorType = "permission"
	ToolErrRateLimit    ToolErrorType = "rate_limit"
	ToolErrExecution    ToolErrorType = "execution"
	ToolErrPanic        ToolErrorType = "panic"
	ToolErrUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether an error of this type is worth retrying.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrTimeout, ToolErrNetwork, ToolErrRateLimit:
		return true
	default:
		return false
	}
}

// ToolError is a structured, classified tool execution failure.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
	Attempts   int
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %q (%s): %s: %v", e.ToolName, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("tool %q (%s): %s", e.ToolName, e.Type, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// Retryable reports whether this error's type is worth retrying.
func (e *ToolError) Retryable() bool { return e.Type.IsRetryable() }

// NewToolError classifies cause's text and wraps it.
func NewToolError(toolName string, cause error) *ToolError {
	return &ToolError{
		Type:     classifyToolError(cause),
		ToolName: toolName,
		Message:  cause.Error(),
		Cause:    cause,
	}
}

// classifyToolError applies string-matching heuristics against the
// error text, since tool implementations in this module's scope
// return plain errors rather than typed ones.
func classifyToolError(err error) ToolErrorType {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, ErrToolTimeout) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ToolErrTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dns") || strings.Contains(msg, "refused") || strings.Contains(msg, "unreachable"):
		return ToolErrNetwork
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ToolErrRateLimit
	case strings.Contains(msg, "permission") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "access denied"):
		return ToolErrPermission
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation") ||
		strings.Contains(msg, "required") || strings.Contains(msg, "missing"):
		return ToolErrInvalidInput
	default:
		return ToolErrExecution
	}
}

// IsToolError reports whether err is, or wraps, a *ToolError.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
