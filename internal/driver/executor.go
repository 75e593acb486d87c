package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/driftloom/loomcore/internal/registry"
	"github.com/driftloom/loomcore/pkg/models"
)

// ExecConfig parameterizes the retry/timeout wrapper around a single
// tool call.
type ExecConfig struct {
	Timeout         time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultExecConfig returns the baseline executor tunables.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Timeout:         30 * time.Second,
		MaxAttempts:     1,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

// runTool executes one tool call through its registry.Executor with a
// per-attempt timeout and retry loop, isolating panics as ToolError
// values rather than crashing the driver goroutine.
func runTool(ctx context.Context, ex registry.Executor, call models.ToolCallRequest, cfg ExecConfig, metrics *Metrics) (models.ToolResult, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxRetryBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		metrics.recordExecution()

		result, err := executeWithTimeout(ctx, ex, call, cfg.Timeout)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrToolTimeout) {
			metrics.recordTimeout()
		}
		toolErr := NewToolError(call.Name, err)
		toolErr.Attempts = attempt

		if !toolErr.Retryable() || attempt == attempts {
			metrics.recordFailure()
			return models.ToolResult{}, toolErr
		}

		metrics.recordRetry()
		select {
		case <-ctx.Done():
			return models.ToolResult{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return models.ToolResult{}, lastErr
}

// executeWithTimeout runs one attempt on a goroutine so a tool that
// ignores ctx cancellation can still be bounded by Timeout: a
// buffered result channel plus select on ctx.Done(), with panics
// recovered and converted to ToolError rather than crashing the
// caller.
func executeWithTimeout(ctx context.Context, ex registry.Executor, call models.ToolCallRequest, timeout time.Duration) (result models.ToolResult, err error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v\n%s", ErrToolPanic, r, debug.Stack())}
			}
		}()
		res, execErr := ex.Execute(timeoutCtx, call)
		done <- outcome{result: res, err: execErr}
	}()

	select {
	case <-timeoutCtx.Done():
		return models.ToolResult{}, fmt.Errorf("%w: %s", ErrToolTimeout, call.Name)
	case o := <-done:
		return o.result, o.err
	}
}
