package pumped

import (
	"context"
	"errors"
	"testing"
)

func TestPresetValue(t *testing.T) {
	real := Provide(func(ctx *ResolveCtx) (string, error) {
		return "real", nil
	})

	scope := NewScope(WithPreset[string](real, "fake"))

	val, err := Resolve(scope, real)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "fake" {
		t.Errorf("expected preset value %q, got %q", "fake", val)
	}
}

func TestPresetExecutor(t *testing.T) {
	real := Provide(func(ctx *ResolveCtx) (string, error) {
		return "real", nil
	})
	fake := Provide(func(ctx *ResolveCtx) (string, error) {
		return "fake-executor", nil
	})

	scope := NewScope(WithPreset[string](real, fake))

	val, err := Resolve(scope, real)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "fake-executor" {
		t.Errorf("expected replacement executor's value, got %q", val)
	}
}

func TestPresetWrongTypePanics(t *testing.T) {
	real := Provide(func(ctx *ResolveCtx) (string, error) { return "real", nil })

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for mismatched preset type")
		}
	}()
	NewScope(WithPreset[string](real, 42))
}

func TestCleanupOrderIsLIFOAcrossExecutors(t *testing.T) {
	scope := NewScope()
	var order []string

	a := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { order = append(order, "a"); return nil })
		return 1, nil
	})
	b := Derive1(Dep(a), func(ctx *ResolveCtx, deps *ResolvedDeps) (int, error) {
		ctx.OnCleanup(func() error { order = append(order, "b"); return nil })
		return DepValue[int](deps, "dep0") + 1, nil
	})

	if _, err := Resolve(scope, b); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := scope.Dispose(); err != nil {
		t.Fatalf("expected clean dispose, got %v", err)
	}

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("expected cleanup order [b a], got %v", order)
	}
}

func TestControllerReleaseRunsCleanup(t *testing.T) {
	scope := NewScope()
	cleaned := false

	res := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { cleaned = true; return nil })
		return 1, nil
	})

	if _, err := Resolve(scope, res); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctrl := Accessor(scope, res)
	if !ctrl.IsCached() {
		t.Fatal("expected resolved value to be cached")
	}
	if err := ctrl.Release(); err != nil {
		t.Fatalf("expected clean release, got %v", err)
	}
	if !cleaned {
		t.Error("expected cleanup to run on release")
	}
	if ctrl.IsCached() {
		t.Error("expected cache entry cleared after release")
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	scope := NewScope()
	calls := 0

	res := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { calls++; return nil })
		return 1, nil
	})
	if _, err := Resolve(scope, res); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := scope.Dispose(); err != nil {
		t.Fatalf("expected clean dispose, got %v", err)
	}
	if err := scope.Dispose(); err != nil {
		t.Fatalf("expected second dispose to be a no-op, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected cleanup to run exactly once, ran %d times", calls)
	}
}

func TestDisposeAggregatesCleanupErrors(t *testing.T) {
	scope := NewScope()
	err1 := errors.New("cleanup one failed")
	err2 := errors.New("cleanup two failed")

	a := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { return err1 })
		return 1, nil
	})
	b := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { return err2 })
		return 2, nil
	})
	if _, err := Resolve(scope, a); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := Resolve(scope, b); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	err := scope.Dispose()
	if err == nil {
		t.Fatal("expected DisposalError")
	}
	var derr *DisposalError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DisposalError, got %T", err)
	}
	if len(derr.Causes) != 2 {
		t.Errorf("expected 2 aggregated causes, got %d", len(derr.Causes))
	}
}

func TestScopeTagRoundTrip(t *testing.T) {
	tag := NewTag[int]("test.count")
	scope := NewScope(WithScopeTag(tag, 3))

	val, ok := tag.ReadOK(scope)
	if !ok || val != 3 {
		t.Errorf("expected 3, got %d (ok=%v)", val, ok)
	}
}

func TestRequiredTagMissingFails(t *testing.T) {
	tag := NewTag[int]("test.missing")
	scope := NewScope()

	exec := Derive1(RequiredTag(tag), func(ctx *ResolveCtx, deps *ResolvedDeps) (int, error) {
		return DepTag[int](deps, "dep0"), nil
	})

	_, err := Resolve(scope, exec)
	if err == nil {
		t.Fatal("expected error")
	}
	var merr *MissingTagError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MissingTagError, got %T", err)
	}
}

func TestOptionalTagDefault(t *testing.T) {
	tag := NewTag[int]("test.optional", WithDefault(7))
	scope := NewScope()

	exec := Derive1(OptionalTag(tag), func(ctx *ResolveCtx, deps *ResolvedDeps) (int, error) {
		return DepTag[int](deps, "dep0"), nil
	})

	val, err := Resolve(scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 7 {
		t.Errorf("expected default 7, got %d", val)
	}
}

func TestAllTagCollects(t *testing.T) {
	tag := NewTag[string]("test.all")
	scope := NewScope()
	tag.MustSet(scope, "one")
	tag.MustSet(scope, "two")

	exec := Derive1(AllTag(tag), func(ctx *ResolveCtx, deps *ResolvedDeps) ([]string, error) {
		return DepTagAll[string](deps, "dep0"), nil
	})

	vals, err := Resolve(scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(vals) != 2 || vals[0] != "one" || vals[1] != "two" {
		t.Errorf("expected [one two], got %v", vals)
	}
}

type orderedExtension struct {
	BaseExtension
	order    int
	recorded *[]string
}

func newOrderedExtension(name string, order int, recorded *[]string) *orderedExtension {
	return &orderedExtension{
		BaseExtension: NewBaseExtension(name),
		order:         order,
		recorded:      recorded,
	}
}

func (e *orderedExtension) Order() int { return e.order }

func (e *orderedExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	*e.recorded = append(*e.recorded, e.Name())
	return next()
}

func TestUseExtensionOrdering(t *testing.T) {
	var order []string

	low := newOrderedExtension("low", 1, &order)
	high := newOrderedExtension("high", 100, &order)

	scope := NewScope()
	if err := scope.UseExtension(high); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := scope.UseExtension(low); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	exec := Provide(func(ctx *ResolveCtx) (int, error) { return 1, nil })
	if _, err := Resolve(scope, exec); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(order) != 2 || order[0] != "low" || order[1] != "high" {
		t.Errorf("expected extensions to wrap in Order() sequence [low high], got %v", order)
	}
}
