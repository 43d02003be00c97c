package pumped

// Positional constructors for flows with a small, fixed-arity dependency
// list, mirroring Derive1..Derive5 in executor_generated.go.

// Flow1 builds a flow with a single dependency.
func Flow1[I, R any](a Dependency, factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error), opts ...FlowOption[I, R]) *Flow[I, R] {
	return NewFlow(FlowConfig[I, R]{
		Deps:    NewDeps().With("dep0", a),
		Factory: factory,
	}, opts...)
}

// Flow2 builds a flow with two dependencies.
func Flow2[I, R any](a, b Dependency, factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error), opts ...FlowOption[I, R]) *Flow[I, R] {
	return NewFlow(FlowConfig[I, R]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b),
		Factory: factory,
	}, opts...)
}

// Flow3 builds a flow with three dependencies.
func Flow3[I, R any](a, b, c Dependency, factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error), opts ...FlowOption[I, R]) *Flow[I, R] {
	return NewFlow(FlowConfig[I, R]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c),
		Factory: factory,
	}, opts...)
}

// Flow4 builds a flow with four dependencies.
func Flow4[I, R any](a, b, c, d Dependency, factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error), opts ...FlowOption[I, R]) *Flow[I, R] {
	return NewFlow(FlowConfig[I, R]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c).With("dep3", d),
		Factory: factory,
	}, opts...)
}

// Flow5 builds a flow with five dependencies.
func Flow5[I, R any](a, b, c, d, e Dependency, factory func(*ExecutionCtx, *ResolvedDeps, I) (R, error), opts ...FlowOption[I, R]) *Flow[I, R] {
	return NewFlow(FlowConfig[I, R]{
		Deps:    NewDeps().With("dep0", a).With("dep1", b).With("dep2", c).With("dep3", d).With("dep4", e),
		Factory: factory,
	}, opts...)
}
