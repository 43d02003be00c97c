package pumped

import (
	"fmt"
	"strings"
)

// CycleError is raised when resolving an executor would require resolving
// itself, directly or transitively, while that resolution is still in
// flight. Chain lists every executor on the path back to the origin, so the
// message always names at least one (in practice both) executors involved.
type CycleError struct {
	Chain []AnyExecutor
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Chain))
	for i, ex := range e.Chain {
		names[i] = executorLabel(ex)
	}
	return fmt.Sprintf("cycle detected: %s", strings.Join(names, " -> "))
}

// MissingTagError is raised when a required tag dependency has no value and
// no default in the scope's tag source.
type MissingTagError struct {
	Label string
}

func (e *MissingTagError) Error() string {
	return fmt.Sprintf("required tag %q has no value and no default", e.Label)
}

// NotResolvedError is raised by Controller.Get when the underlying executor
// has not been resolved in the scope yet.
type NotResolvedError struct {
	Executor AnyExecutor
}

func (e *NotResolvedError) Error() string {
	return fmt.Sprintf("executor %s is not resolved in this scope", executorLabel(e.Executor))
}

// ContextClosedError is raised by Step when called on a closed ExecutionCtx,
// and by Exec1 when its parent ExecutionCtx is closed.
type ContextClosedError struct {
	ContextID string
}

func (e *ContextClosedError) Error() string {
	return fmt.Sprintf("execution context %s is closed", e.ContextID)
}

// CancelledError is raised when an operation observes cancellation, its own
// or an ancestor's.
type CancelledError struct {
	ContextID string
	Cause     error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("execution context %s cancelled: %v", e.ContextID, e.Cause)
	}
	return fmt.Sprintf("execution context %s cancelled", e.ContextID)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// TimeoutError is raised when a flow tagged with Timeout() does not complete
// before that duration elapses. Key holds the flow's FlowName, or "flow".
type TimeoutError struct {
	Key      string
	Duration string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exec %q timed out after %s", e.Key, e.Duration)
}

// FactoryError wraps any error returned by a user factory during scope
// resolution. Cause is preserved for errors.Is/As.
type FactoryError struct {
	Executor AnyExecutor
	Cause    error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("factory for %s failed: %v", executorLabel(e.Executor), e.Cause)
}

func (e *FactoryError) Unwrap() error { return e.Cause }

// DisposalError aggregates every cleanup failure observed during
// Scope.Dispose. An individual cleanup error never aborts the disposal
// sequence; it accumulates here instead.
type DisposalError struct {
	Causes []error
}

func (e *DisposalError) Error() string {
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("dispose failed with %d cleanup error(s): %s", len(e.Causes), strings.Join(msgs, "; "))
}

func (e *DisposalError) Unwrap() []error { return e.Causes }

func executorLabel(exec AnyExecutor) string {
	if exec == nil {
		return "<nil>"
	}
	if name, ok := exec.GetTag(execNameTag.key()); ok {
		if s, ok := name.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("executor_%p", exec)
}
