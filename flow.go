package pumped

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// AnyFlow is the type-erased form of Flow[I, R].
type AnyFlow interface {
	dependencies() *Deps
	GetTag(key any) (any, bool)
	SetTag(key any, val any)
	invokeFactory(ec *ExecutionCtx, deps *ResolvedDeps, input any) (any, error)
}

// Flow is an effect-orchestration unit: a dependency map resolved before
// it runs, and a factory that receives the resolved deps, the
// ExecutionCtx for the current invocation, and an input value of type I.
// Unlike Executor, a Flow is not cached in the scope — every Exec call
// runs the factory again.
type Flow[I, R any] struct {
	deps    *Deps
	factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error)
	tags    map[any]any
}

func (f *Flow[I, R]) dependencies() *Deps { return f.deps }

func (f *Flow[I, R]) GetTag(key any) (any, bool) {
	val, ok := f.tags[key]
	return val, ok
}

func (f *Flow[I, R]) SetTag(key any, val any) {
	f.tags[key] = val
}

func (f *Flow[I, R]) invokeFactory(ec *ExecutionCtx, deps *ResolvedDeps, input any) (any, error) {
	in, _ := input.(I)
	return f.factory(ec, deps, in)
}

// FlowConfig is the normalized form every flow constructor lowers into.
type FlowConfig[I, R any] struct {
	Deps    *Deps
	Factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error)
}

// FlowOption configures a Flow at construction.
type FlowOption[I, R any] func(*Flow[I, R])

// WithFlowTag sets a static tag on the flow being built, read through
// ExecutionCtx.GetTag whenever a running execution has no closer value.
func WithFlowTag[I, R, V any](tag Tag[V], val V) FlowOption[I, R] {
	return func(f *Flow[I, R]) {
		tag.MustSet(f, val)
	}
}

// NewFlow builds a flow from its normalized configuration.
func NewFlow[I, R any](cfg FlowConfig[I, R], opts ...FlowOption[I, R]) *Flow[I, R] {
	deps := cfg.Deps
	if deps == nil {
		deps = NewDeps()
	}
	f := &Flow[I, R]{
		deps:    deps,
		factory: cfg.Factory,
		tags:    make(map[any]any),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FlowFn builds a dependency-free, input-free flow straight from a
// function of the execution context, the "direct function" form for a
// step that needs no resolved atoms or input of its own.
func FlowFn[R any](factory func(*ExecutionCtx) (R, error), opts ...FlowOption[any, R]) *Flow[any, R] {
	return NewFlow(FlowConfig[any, R]{
		Factory: func(ec *ExecutionCtx, _ *ResolvedDeps, _ any) (R, error) {
			return factory(ec)
		},
	}, opts...)
}

// ExecutionStatus is the terminal (or current) status of an ExecutionCtx.
type ExecutionStatus int

const (
	ExecutionStatusRunning ExecutionStatus = iota
	ExecutionStatusSuccess
	ExecutionStatusFailed
	ExecutionStatusCancelled
)

var (
	flowNameTag   = NewTag[string]("flow.name")
	timeoutTag    = NewTag[time.Duration]("flow.timeout")
	startTimeTag  = NewTag[time.Time]("exec.start_time")
	endTimeTag    = NewTag[time.Time]("exec.end_time")
	statusTag     = NewTag[ExecutionStatus]("exec.status")
	errorTag      = NewTag[error]("exec.error")
	outputTag     = NewTag[any]("exec.output")
	panicStackTag = NewTag[[]byte]("exec.panic_stack")
)

func FlowName() Tag[string]        { return flowNameTag }
func Timeout() Tag[time.Duration]  { return timeoutTag }
func StartTime() Tag[time.Time]    { return startTimeTag }
func EndTime() Tag[time.Time]      { return endTimeTag }
func Status() Tag[ExecutionStatus] { return statusTag }
func ErrorTag() Tag[error]         { return errorTag }
func Output() Tag[any]             { return outputTag }
func PanicStack() Tag[[]byte]      { return panicStackTag }

// Exec runs flow as a top-level execution in scope, under ctx, passing it
// input. It allocates a fresh root ExecutionCtx, resolves flow's eager
// dependencies, runs the factory with panic recovery, and records the
// finished execution in the scope's ExecutionTree.
func Exec[I, R any](s *Scope, ctx context.Context, flow *Flow[I, R], input I) (R, *ExecutionCtx, error) {
	return execFlow(nil, s, ctx, flow, input)
}

// Exec1 runs flow as a sub-flow of parent, sharing its scope and deriving
// its cancellation from parent's context. If key is provided and parent's
// journal already has an entry for it, the recorded result is served
// without re-running flow — the same deduplication principle Step uses
// for direct function steps.
func Exec1[I, R any](parent *ExecutionCtx, flow *Flow[I, R], input I, key ...string) (R, *ExecutionCtx, error) {
	var zero R
	hasKey := len(key) > 0 && key[0] != ""

	if hasKey {
		if entry, ok := parent.journalLookup(key[0]); ok {
			if entry.err != nil {
				return zero, nil, entry.err
			}
			result, _ := entry.result.(R)
			return result, nil, nil
		}
	}

	result, ec, err := execFlow(parent, parent.scope, parent.ctx, flow, input)

	if hasKey {
		parent.journalRecord(key[0], input, result, err)
	}
	return result, ec, err
}

func execFlow[I, R any](parent *ExecutionCtx, s *Scope, ctx context.Context, flow *Flow[I, R], input I) (R, *ExecutionCtx, error) {
	var zero R

	if parent != nil {
		if parent.IsClosed() {
			return zero, nil, &ContextClosedError{ContextID: parent.id}
		}
		if err := parent.ThrowIfCancelled(); err != nil {
			return zero, nil, err
		}
	}

	select {
	case <-ctx.Done():
		ec := newExecutionCtx(parent, s, flow, ctx)
		cancelErr := &CancelledError{ContextID: ec.id, Cause: ctx.Err()}
		ec.Set(endTimeTag.key(), time.Now())
		ec.Set(statusTag.key(), ExecutionStatusCancelled)
		ec.Set(errorTag.key(), cancelErr)
		return zero, ec, cancelErr
	default:
	}

	for _, name := range flow.deps.order {
		dep := flow.deps.entries[name]
		if dep.depKind() == depKindLazy {
			continue
		}
		select {
		case <-ctx.Done():
			ec := newExecutionCtx(parent, s, flow, ctx)
			cancelErr := &CancelledError{ContextID: ec.id, Cause: ctx.Err()}
			ec.Set(endTimeTag.key(), time.Now())
			ec.Set(statusTag.key(), ExecutionStatusCancelled)
			ec.Set(errorTag.key(), cancelErr)
			return zero, ec, cancelErr
		default:
		}
		if dep.depKind() == depKindExec {
			executor := dep.(AnyExecutor)
			if _, err := s.resolve(executor, nil); err != nil {
				return zero, nil, fmt.Errorf("resolving flow dependency %q: %w", name, err)
			}
		}
	}

	ec := newExecutionCtx(parent, s, flow, ctx)
	flowLabel := "flow"
	if name, ok := flow.GetTag(flowNameTag.key()); ok {
		ec.Set(flowNameTag.key(), name)
		if label, ok := name.(string); ok {
			flowLabel = label
		}
	}

	var timeoutDur time.Duration
	if dur, ok := flow.GetTag(timeoutTag.key()); ok {
		if d, ok := dur.(time.Duration); ok && d > 0 {
			timeoutDur = d
			timeoutCtx, timeoutCancel := context.WithTimeout(ec.ctx, d)
			prevCancel := ec.cancel
			ec.ctx = timeoutCtx
			ec.cancel = func() { timeoutCancel(); prevCancel() }
		}
	}

	ec.Set(startTimeTag.key(), time.Now())
	ec.Set(statusTag.key(), ExecutionStatusRunning)

	s.mu.RLock()
	exts := append([]Extension{}, s.extensions...)
	s.mu.RUnlock()

	for _, ext := range exts {
		if err := ext.OnFlowStart(ec, flow); err != nil {
			ec.Set(statusTag.key(), ExecutionStatusFailed)
			ec.Set(errorTag.key(), err)
			return zero, ec, err
		}
	}

	select {
	case <-ec.ctx.Done():
		cancelErr := &CancelledError{ContextID: ec.id, Cause: ec.ctx.Err()}
		ec.Set(endTimeTag.key(), time.Now())
		ec.Set(statusTag.key(), ExecutionStatusCancelled)
		ec.Set(errorTag.key(), cancelErr)
		return zero, ec, cancelErr
	default:
	}

	resolved, err := s.buildResolvedDeps(flow.deps, nil)
	var result R
	if err != nil {
		result, err = zero, err
	} else {
		result, err = runFlowFactory(ec, flow, resolved, input, exts)
	}

	ec.Set(endTimeTag.key(), time.Now())
	if err != nil {
		if timeoutDur > 0 && errors.Is(err, context.DeadlineExceeded) {
			ec.Set(statusTag.key(), ExecutionStatusCancelled)
			err = &TimeoutError{Key: flowLabel, Duration: timeoutDur.String()}
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			ec.Set(statusTag.key(), ExecutionStatusCancelled)
			var cerr *CancelledError
			if !errors.As(err, &cerr) {
				err = &CancelledError{ContextID: ec.id, Cause: err}
			}
		} else {
			ec.Set(statusTag.key(), ExecutionStatusFailed)
		}
		ec.Set(errorTag.key(), err)
	} else {
		ec.Set(statusTag.key(), ExecutionStatusSuccess)
		ec.Set(outputTag.key(), result)
	}

	for i := len(exts) - 1; i >= 0; i-- {
		if extErr := exts[i].OnFlowEnd(ec, result, err); extErr != nil && err == nil {
			err = extErr
		}
	}

	ec.Close()
	node := ec.finalize()
	s.execTree.addNode(node)

	return result, ec, err
}

// runFlowFactory invokes flow's factory with panic recovery: the factory
// runs in its own goroutine so a panic there cannot crash the caller, and
// races against the execution's own context cancellation.
func runFlowFactory[I, R any](ec *ExecutionCtx, flow *Flow[I, R], resolved *ResolvedDeps, input I, exts []Extension) (result R, err error) {
	type outcome struct {
		value R
		err   error
		panic any
		stack []byte
	}

	resultCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{panic: r, stack: debug.Stack()}
			}
		}()
		value, ferr := flow.factory(ec, resolved, input)
		resultCh <- outcome{value: value, err: ferr}
	}()

	select {
	case res := <-resultCh:
		if res.panic != nil {
			err = fmt.Errorf("panic in flow: %v", res.panic)
			ec.Set(panicStackTag.key(), res.stack)
			for _, ext := range exts {
				if panicErr := ext.OnFlowPanic(ec, res.panic, res.stack); panicErr != nil {
					err = errors.Join(err, panicErr)
				}
			}
			return
		}
		result = res.value
		err = res.err
		return
	case <-ec.ctx.Done():
		err = ec.ctx.Err()
		return
	}
}
