package pumped

import "sync"

// depKind discriminates the three dependency cases a factory can declare:
// another executor, a lazily-bound one, or a tag binding. Go has no sum
// types, so this is the tagged-variant shape the design notes call for —
// dispatch on depKind, never on a type switch across unrelated interfaces.
type depKind int

const (
	depKindExec depKind = iota
	depKindLazy
	depKindTag
)

// Dependency is any entry a factory's dependency map can hold.
type Dependency interface {
	depKind() depKind
}

// AnyExecutor is the type-erased form of Executor[T], used wherever the
// scope needs to hold executors of differing result types in the same
// collection (the cache, the preset map, a dependency map).
type AnyExecutor interface {
	Dependency
	GetTag(key any) (any, bool)
	SetTag(key any, val any)
	dependencies() *Deps
	invokeFactory(ctx *ResolveCtx, deps *ResolvedDeps) (any, error)
}

// Executor is an immutable descriptor of a computed resource: its
// dependency map and the factory that produces its value. Identity is the
// pointer itself — two executors built from identical configuration are
// still distinct nodes in any scope's graph.
type Executor[T any] struct {
	mu      sync.RWMutex
	deps    *Deps
	factory func(*ResolveCtx, *ResolvedDeps) (T, error)
	tags    map[any]any
}

func (e *Executor[T]) depKind() depKind { return depKindExec }

func (e *Executor[T]) GetTag(key any) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	val, ok := e.tags[key]
	return val, ok
}

func (e *Executor[T]) SetTag(key any, val any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tags[key] = val
}

func (e *Executor[T]) dependencies() *Deps { return e.deps }

func (e *Executor[T]) invokeFactory(ctx *ResolveCtx, deps *ResolvedDeps) (any, error) {
	return e.factory(ctx, deps)
}

// ExecutorOption configures an Executor at construction, mirroring the
// executor_generated.go convenience constructors.
type ExecutorOption[T any] func(*Executor[T])

// Tagged writes tag to val on whatever the option is applied to (an
// Executor[T] or a Flow[I, R]); construction-time validation failures panic,
// since a bad literal tag value is a programmer error, not a runtime one.
func Tagged[V any](tag Tag[V], val V) func(TagStore) {
	return func(store TagStore) {
		tag.MustSet(store, val)
	}
}

// WithTag applies a Tagged option to an executor being built.
func WithTag[T, V any](tag Tag[V], val V) ExecutorOption[T] {
	return func(e *Executor[T]) {
		tag.MustSet(e, val)
	}
}

// ExecutorConfig is the normalized form every executor constructor lowers
// into: a named dependency map and a factory that receives the resolved
// form of it. Derive1..Derive5 are sugar over this.
type ExecutorConfig[T any] struct {
	Deps    *Deps
	Factory func(*ResolveCtx, *ResolvedDeps) (T, error)
}

// New builds an executor from its normalized configuration.
func New[T any](cfg ExecutorConfig[T], opts ...ExecutorOption[T]) *Executor[T] {
	deps := cfg.Deps
	if deps == nil {
		deps = NewDeps()
	}
	exec := &Executor[T]{
		deps:    deps,
		factory: cfg.Factory,
		tags:    make(map[any]any),
	}
	for _, opt := range opts {
		opt(exec)
	}
	return exec
}

// Provide creates an executor with no dependencies.
func Provide[T any](factory func(*ResolveCtx) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Factory: func(ctx *ResolveCtx, _ *ResolvedDeps) (T, error) {
			return factory(ctx)
		},
	}, opts...)
}

// Lazy wraps executor so that, used as a dependency, the depending
// factory receives a Controller[T] instead of the resolved value —
// breaking eager resolution so the dependency can be fetched on demand or
// used to resolve cycles between state/controller-style executors.
func Lazy[T any](executor *Executor[T]) Dependency {
	return lazyDependency{
		executor: executor,
		makeController: func(s *Scope, exec AnyExecutor) any {
			return &Controller[T]{executor: exec.(*Executor[T]), scope: s}
		},
	}
}

type lazyDependency struct {
	executor       AnyExecutor
	makeController func(s *Scope, exec AnyExecutor) any
}

func (lazyDependency) depKind() depKind { return depKindLazy }

// tagBindMode distinguishes the three ways a Tag can be declared as a
// dependency.
type tagBindMode int

const (
	tagBindRequired tagBindMode = iota
	tagBindOptional
	tagBindAll
)

type tagDependency struct {
	mode    tagBindMode
	label   string
	extract func(s *Scope) (any, error)
	read    func(s *Scope) any
	collect func(s *Scope) any
}

func (tagDependency) depKind() depKind { return depKindTag }

// RequiredTag declares a dependency that fails resolution with
// MissingTagError if the scope has no value and the tag has no default.
func RequiredTag[T any](tag Tag[T]) Dependency {
	return tagDependency{
		mode:  tagBindRequired,
		label: tag.Label(),
		extract: func(s *Scope) (any, error) {
			return tag.Extract(s)
		},
	}
}

// OptionalTag declares a dependency that falls back to the tag's default
// (or T's zero value) when the scope has no value for it.
func OptionalTag[T any](tag Tag[T]) Dependency {
	return tagDependency{
		mode:  tagBindOptional,
		label: tag.Label(),
		read: func(s *Scope) any {
			return tag.Read(s)
		},
	}
}

// AllTag declares a dependency that collects every value written for tag
// on the scope, in write order.
func AllTag[T any](tag Tag[T]) Dependency {
	return tagDependency{
		mode:  tagBindAll,
		label: tag.Label(),
		collect: func(s *Scope) any {
			return collectScopeTag(s, tag)
		},
	}
}
