package pumped

import (
	"context"
	"errors"
	"testing"
)

func TestFlowFnBasic(t *testing.T) {
	flow := FlowFn(func(ec *ExecutionCtx) (string, error) {
		return "hello", nil
	})

	val, ec, err := Exec(NewScope(), context.Background(), flow, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "hello" {
		t.Errorf("expected hello, got %q", val)
	}
	if ec.ID() == "" {
		t.Error("expected a non-empty execution id")
	}
}

func TestFlow2ResolvesExecutorDeps(t *testing.T) {
	a := Provide(func(ctx *ResolveCtx) (int, error) { return 2, nil })
	b := Provide(func(ctx *ResolveCtx) (int, error) { return 3, nil })

	flow := Flow2[any](Dep(a), Dep(b), func(ec *ExecutionCtx, deps *ResolvedDeps, _ any) (int, error) {
		return DepValue[int](deps, "dep0") * DepValue[int](deps, "dep1"), nil
	})

	val, _, err := Exec(NewScope(), context.Background(), flow, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 6 {
		t.Errorf("expected 6, got %d", val)
	}
}

func TestFlowInputPassedToFactory(t *testing.T) {
	double := Flow1[int](nil, func(ec *ExecutionCtx, deps *ResolvedDeps, input int) (int, error) {
		return input * 2, nil
	})

	val, _, err := Exec(NewScope(), context.Background(), double, 21)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestExecPreResolvesSharedExecutorOnce(t *testing.T) {
	calls := 0
	shared := Provide(func(ctx *ResolveCtx) (int, error) {
		calls++
		return 1, nil
	})
	scope := NewScope()

	flowA := Flow1[any](Dep(shared), func(ec *ExecutionCtx, deps *ResolvedDeps, _ any) (int, error) {
		return DepValue[int](deps, "dep0"), nil
	})
	flowB := Flow1[any](Dep(shared), func(ec *ExecutionCtx, deps *ResolvedDeps, _ any) (int, error) {
		return DepValue[int](deps, "dep0"), nil
	})

	if _, _, err := Exec(scope, context.Background(), flowA, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, _, err := Exec(scope, context.Background(), flowB, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected executor dependency resolved once across flows, got %d", calls)
	}
}

func TestExecReRunsFlowEveryCall(t *testing.T) {
	calls := 0
	flow := FlowFn(func(ec *ExecutionCtx) (int, error) {
		calls++
		return calls, nil
	})
	scope := NewScope()

	first, _, _ := Exec(scope, context.Background(), flow, nil)
	second, _, _ := Exec(scope, context.Background(), flow, nil)

	if first == second {
		t.Error("expected a Flow to re-run its factory on every Exec, unlike a cached Executor")
	}
}

func TestExec1DedupByKey(t *testing.T) {
	calls := 0
	child := FlowFn(func(ec *ExecutionCtx) (int, error) {
		calls++
		return calls, nil
	})
	parentFlow := FlowFn(func(ec *ExecutionCtx) ([2]int, error) {
		first, _, err := Exec1(ec, child, nil, "load")
		if err != nil {
			return [2]int{}, err
		}
		second, _, err := Exec1(ec, child, nil, "load")
		if err != nil {
			return [2]int{}, err
		}
		return [2]int{first, second}, nil
	})

	val, _, err := Exec(NewScope(), context.Background(), parentFlow, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected child flow to run once under a shared key, got %d calls", calls)
	}
	if val[0] != val[1] {
		t.Errorf("expected both Exec1 calls to return the journaled result, got %v", val)
	}
}

func TestExec1WithoutKeyRunsEveryTime(t *testing.T) {
	calls := 0
	child := FlowFn(func(ec *ExecutionCtx) (int, error) {
		calls++
		return calls, nil
	})
	parentFlow := FlowFn(func(ec *ExecutionCtx) (int, error) {
		if _, _, err := Exec1(ec, child, nil); err != nil {
			return 0, err
		}
		val, _, err := Exec1(ec, child, nil)
		return val, err
	})

	if _, _, err := Exec(NewScope(), context.Background(), parentFlow, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected child flow to run on every Exec1 call without a key, got %d calls", calls)
	}
}

func TestFlowStatusTagOnSuccess(t *testing.T) {
	flow := FlowFn(func(ec *ExecutionCtx) (int, error) { return 1, nil })
	_, ec, err := Exec(NewScope(), context.Background(), flow, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if Status().Read(ec) != ExecutionStatusSuccess {
		t.Errorf("expected success status, got %v", Status().Read(ec))
	}
	if out, ok := Output().ReadOK(ec); !ok || out.(int) != 1 {
		t.Errorf("expected output tag to hold 1, got %v (ok=%v)", out, ok)
	}
}

func TestFlowStatusTagOnFailure(t *testing.T) {
	cause := errors.New("failed")
	flow := FlowFn(func(ec *ExecutionCtx) (int, error) { return 0, cause })
	_, ec, err := Exec(NewScope(), context.Background(), flow, nil)
	if !errors.Is(err, cause) {
		t.Fatalf("expected %v, got %v", cause, err)
	}
	if Status().Read(ec) != ExecutionStatusFailed {
		t.Errorf("expected failed status, got %v", Status().Read(ec))
	}
	if errTag, ok := ErrorTag().ReadOK(ec); !ok || !errors.Is(errTag, cause) {
		t.Errorf("expected error tag to hold %v, got %v (ok=%v)", cause, errTag, ok)
	}
}

func TestExecCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flow := FlowFn(func(ec *ExecutionCtx) (int, error) { return 1, nil })
	_, ec, err := Exec(NewScope(), ctx, flow, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var cerr *CancelledError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CancelledError, got %T", err)
	}
	if Status().Read(ec) != ExecutionStatusCancelled {
		t.Errorf("expected cancelled status, got %v", Status().Read(ec))
	}
}

func TestExec1OnClosedParentFailsWithContextClosedError(t *testing.T) {
	child := FlowFn(func(ec *ExecutionCtx) (int, error) { return 1, nil })
	_, parentEc, err := Exec(NewScope(), context.Background(), FlowFn(func(ec *ExecutionCtx) (int, error) {
		return 0, nil
	}), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// parentEc has already been closed by Exec's own completion path.
	_, _, err = Exec1(parentEc, child, nil)
	var closedErr *ContextClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("expected *ContextClosedError, got %v (%T)", err, err)
	}
}

func TestFlowNameTag(t *testing.T) {
	flow := FlowFn(func(ec *ExecutionCtx) (int, error) {
		return 0, nil
	}, WithFlowTag[any, int](FlowName(), "checkout"))

	_, ec, err := Exec(NewScope(), context.Background(), flow, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if name := FlowName().Read(ec); name != "checkout" {
		t.Errorf("expected flow name %q, got %q", "checkout", name)
	}
}
