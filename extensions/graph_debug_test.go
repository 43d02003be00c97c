package extensions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	pumped "github.com/flowcore-dev/pumped"
)

func TestGraphDebugExtensionOnError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(io.MultiWriter(&buf, os.Stdout), slog.LevelError)

	scope := pumped.NewScope(pumped.WithExtension(NewGraphDebugExtension(handler)))
	defer scope.Dispose()

	storage := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil },
		pumped.WithTag[string](pumped.ExecutorName(), "Storage"),
	)

	userService := pumped.Derive1(
		pumped.Dep(storage),
		func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (string, error) {
			return "", errors.New("type assertion failed: expected *User, got *string")
		},
		pumped.WithTag[string](pumped.ExecutorName(), "UserService"),
	)

	_, err := pumped.Resolve(scope, userService)
	if err == nil {
		t.Fatal("expected error but got nil")
	}

	output := buf.String()
	if !strings.Contains(output, "[GraphDebug] Dependency Resolution Error") {
		t.Error("expected '[GraphDebug] Dependency Resolution Error' header")
	}
	if !strings.Contains(output, "Failed Executor: UserService") {
		t.Error("expected 'Failed Executor: UserService'")
	}
	if !strings.Contains(output, "Operation: resolve") {
		t.Error("expected 'Operation: resolve'")
	}
	if !strings.Contains(output, "Dependency Graph:") {
		t.Error("expected 'Dependency Graph:' section")
	}
	if !strings.Contains(output, "Storage") {
		t.Error("expected 'Storage' in dependency graph")
	}
	if !strings.Contains(output, "Error Details:") {
		t.Error("expected 'Error Details:' section")
	}
}

func TestGraphDebugExtensionTracksResolvedExecutors(t *testing.T) {
	ext := NewGraphDebugExtension(NewSilentHandler())
	scope := pumped.NewScope(pumped.WithExtension(ext))
	defer scope.Dispose()

	storage := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil },
		pumped.WithTag[string](pumped.ExecutorName(), "Storage"),
	)
	service := pumped.Derive1(
		pumped.Dep(storage),
		func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (string, error) {
			return "service-" + pumped.DepValue[string](deps, "dep0"), nil
		},
		pumped.WithTag[string](pumped.ExecutorName(), "Service"),
	)

	if _, err := pumped.Resolve(scope, service); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ext.resolvedExecutors[storage] {
		t.Error("expected storage tracked as resolved")
	}
	if !ext.resolvedExecutors[service] {
		t.Error("expected service tracked as resolved")
	}
}

func TestGraphDebugExtensionExportDependencyGraph(t *testing.T) {
	scope := pumped.NewScope()
	defer scope.Dispose()

	config := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "config", nil },
		pumped.WithTag[string](pumped.ExecutorName(), "Config"),
	)
	storage := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil },
		pumped.WithTag[string](pumped.ExecutorName(), "Storage"),
	)
	service := pumped.Derive2(
		pumped.Dep(config), pumped.Dep(storage),
		func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (string, error) {
			return pumped.DepValue[string](deps, "dep0") + "-" + pumped.DepValue[string](deps, "dep1"), nil
		},
		pumped.WithTag[string](pumped.ExecutorName(), "Service"),
	)

	if _, err := pumped.Resolve(scope, service); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph := scope.ExportDependencyGraph()
	if len(graph) == 0 {
		t.Fatal("expected non-empty dependency graph")
	}

	configDeps, hasConfig := graph[config]
	if !hasConfig {
		t.Fatal("expected config in dependency graph")
	}
	found := false
	for _, dep := range configDeps {
		if dep == service {
			found = true
		}
	}
	if !found {
		t.Error("expected service to be a dependent of config")
	}
}

func TestGraphDebugExtensionOnFlowPanic(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(io.MultiWriter(&buf, os.Stdout), slog.LevelError)

	scope := pumped.NewScope(pumped.WithExtension(NewGraphDebugExtension(handler)))
	defer scope.Dispose()

	panicFlow := pumped.FlowFn(func(ec *pumped.ExecutionCtx) (string, error) {
		panic("simulated panic")
	}, pumped.WithFlowTag[any, string](pumped.FlowName(), "PanicFlow"))

	_, _, err := pumped.Exec(scope, context.Background(), panicFlow, nil)
	if err == nil {
		t.Fatal("expected panic error but got nil")
	}

	output := buf.String()
	if !strings.Contains(output, "[GraphDebug] Flow Panic") {
		t.Error("expected '[GraphDebug] Flow Panic' header")
	}
	if !strings.Contains(output, "Panic: simulated panic") {
		t.Error("expected 'Panic: simulated panic'")
	}
	if !strings.Contains(output, "Flow: PanicFlow") {
		t.Error("expected 'Flow: PanicFlow'")
	}
	if !strings.Contains(output, "Stack Trace:") {
		t.Error("expected 'Stack Trace:' section")
	}
	if strings.Contains(output, "\\n") {
		t.Error("expected actual newlines, not escaped \\n characters")
	}
}

func TestGraphDebugExtensionGetExecutorName(t *testing.T) {
	ext := NewGraphDebugExtension(NewSilentHandler())

	named := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "value", nil },
		pumped.WithTag[string](pumped.ExecutorName(), "NamedExecutor"),
	)
	if name := ext.getExecutorName(named); name != "NamedExecutor" {
		t.Errorf("expected 'NamedExecutor', got %q", name)
	}

	unnamed := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "value", nil })
	if name := ext.getExecutorName(unnamed); !strings.HasPrefix(name, "executor_") {
		t.Errorf("expected name to start with 'executor_', got %q", name)
	}
}

func TestSilentHandler(t *testing.T) {
	handler := NewSilentHandler()

	if handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected SilentHandler to be disabled for all levels")
	}
	if err := handler.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("expected Handle to return nil, got %v", err)
	}
	if handler.WithAttrs(nil) != handler {
		t.Error("expected WithAttrs to return self")
	}
	if handler.WithGroup("test") != handler {
		t.Error("expected WithGroup to return self")
	}

	ext := NewGraphDebugExtension(handler)
	scope := pumped.NewScope(pumped.WithExtension(ext))
	defer scope.Dispose()

	failing := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "", errors.New("intentional error") },
		pumped.WithTag[string](pumped.ExecutorName(), "FailingExecutor"),
	)
	if _, err := pumped.Resolve(scope, failing); err == nil {
		t.Error("expected error from failing executor")
	}
}
