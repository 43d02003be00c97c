package pumped

// Controller is the handle a Lazy dependency receives instead of the
// resolved value itself: it can read whatever is already cached, trigger
// resolution on demand, or release the cached entry — but never forces an
// eager recompute, since this library has no reactive propagation.
type Controller[T any] struct {
	executor *Executor[T]
	scope    *Scope
}

// Accessor builds a Controller for executor against scope, without
// resolving it. This is the free-function form used by New/Derive
// factories; Lazy(executor) builds one implicitly for a dependency slot.
func Accessor[T any](s *Scope, executor *Executor[T]) *Controller[T] {
	return &Controller[T]{executor: executor, scope: s}
}

// Get returns the cached value, failing with NotResolvedError if the
// executor has never been resolved in this scope. It never runs the
// factory — call Resolve for that.
func (c *Controller[T]) Get() (T, error) {
	val, ok := c.scope.peek(c.executor)
	if !ok {
		var zero T
		return zero, &NotResolvedError{Executor: c.executor}
	}
	return val.(T), nil
}

// Resolve returns the cached value, computing and memoizing it first if
// necessary. Concurrent callers racing on the same uncached executor
// coalesce onto a single factory invocation.
func (c *Controller[T]) Resolve() (T, error) {
	return Resolve(c.scope, c.executor)
}

// Release runs this executor's registered cleanups and clears its cache
// entry. It does not cascade: executors depending on this one keep
// whatever value they already resolved, and will not notice until they
// themselves are released and re-resolved. Accepting that staleness is the
// price of an advanced primitive — callers who release should know why.
func (c *Controller[T]) Release() error {
	return c.scope.release(c.executor)
}

// IsCached reports whether a value is currently cached for this executor,
// without affecting it.
func (c *Controller[T]) IsCached() bool {
	_, ok := c.scope.peek(c.executor)
	return ok
}
