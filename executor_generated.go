package pumped

//go:generate go run codegen/main.go -w

// Positional constructors for the common case of a small, fixed-arity
// dependency list. Each wraps ExecutorConfig's named map under the hood
// (dep0, dep1, ...), so Derive-built and New-built executors interoperate
// freely as dependencies of one another.
//
// The original codegen produced Derive1..Derive9; this cuts it to 1..5,
// since nothing past a five-way dependency in a resolver this shape shows
// up anywhere in practice without reaching for a named Deps map instead.

// Derive1 builds an executor with a single dependency.
func Derive1[T any](a Dependency, factory func(*ResolveCtx, *ResolvedDeps) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Deps:    NewDeps().With("dep0", a),
		Factory: factory,
	}, opts...)
}

// Derive2 builds an executor with two dependencies.
func Derive2[T any](a, b Dependency, factory func(*ResolveCtx, *ResolvedDeps) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b),
		Factory: factory,
	}, opts...)
}

// Derive3 builds an executor with three dependencies.
func Derive3[T any](a, b, c Dependency, factory func(*ResolveCtx, *ResolvedDeps) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c),
		Factory: factory,
	}, opts...)
}

// Derive4 builds an executor with four dependencies.
func Derive4[T any](a, b, c, d Dependency, factory func(*ResolveCtx, *ResolvedDeps) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c).With("dep3", d),
		Factory: factory,
	}, opts...)
}

// Derive5 builds an executor with five dependencies.
func Derive5[T any](a, b, c, d, e Dependency, factory func(*ResolveCtx, *ResolvedDeps) (T, error), opts ...ExecutorOption[T]) *Executor[T] {
	return New(ExecutorConfig[T]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c).With("dep3", d).With("dep4", e),
		Factory: factory,
	}, opts...)
}
