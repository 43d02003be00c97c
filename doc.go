// Package pumped provides a graph-based dependency injection and effect
// orchestration framework for Go.
//
// # Overview
//
// Pumped organizes code around four core concepts:
//
//  1. Executors: memoized units of computation with explicit dependencies
//  2. Scopes: lifecycle managers that resolve, cache, and dispose executor values
//  3. Flows: short-span executable operations with hierarchical execution contexts
//  4. Tags: typed metadata attached to executors, scopes, and execution contexts
//
// # Basic Usage
//
// Create executors to define your application graph:
//
//	scope := pumped.NewScope()
//	defer scope.Dispose()
//
//	config := pumped.Provide(func(ctx *pumped.ResolveCtx) (*Config, error) {
//	    return &Config{Port: 8080}, nil
//	})
//
//	server := pumped.Derive1(
//	    pumped.Dep(config),
//	    func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (*Server, error) {
//	        cfg := pumped.DepValue[*Config](deps, "dep0")
//	        return NewServer(cfg.Port), nil
//	    },
//	)
//
//	srv, err := pumped.Resolve(scope, server)
//
// # Dependency Kinds
//
// A Dependency wraps an Executor for one of three resolution behaviors:
//
//	// Eager (default): resolved and cached before the depending factory runs
//	service := pumped.Derive1(
//	    pumped.Dep(config),
//	    func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (*Service, error) {
//	        cfg := pumped.DepValue[*Config](deps, "dep0")
//	        return NewService(cfg), nil
//	    },
//	)
//
//	// Lazy: deferred until the factory explicitly asks for it
//	logger := pumped.Derive1(
//	    pumped.Lazy(config),
//	    func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (*Logger, error) {
//	        cfg := pumped.DepAccessor[*Config](deps, "dep0")
//	        if !cfg.IsCached() {
//	            // config has not resolved yet; Get() would return NotResolvedError,
//	            // Resolve() would resolve it now
//	        }
//	        return NewLogger(), nil
//	    },
//	)
//
//	// Tag dependencies pull values straight from a Tag instead of an Executor
//	service2 := pumped.Derive1(
//	    pumped.RequiredTag(poolSizeTag),
//	    func(ctx *pumped.ResolveCtx, deps *pumped.ResolvedDeps) (*Pool, error) {
//	        size := pumped.DepTag[int](deps, "dep0")
//	        return NewPool(size), nil
//	    },
//	)
//
// # Controllers
//
// A Controller gives lifecycle access to a single executor's cached value:
//
//	ctrl := pumped.Accessor(scope, executor)
//
//	// Resolve resolves (if needed) and returns the value
//	val, err := ctrl.Resolve()
//
//	// Get returns the cached value without triggering resolution,
//	// failing with NotResolvedError if nothing is cached
//	val, err := ctrl.Get()
//
//	// IsCached reports whether a value is currently cached
//	if ctrl.IsCached() { ... }
//
//	// Release drops the cached value and runs its registered cleanups
//	err := ctrl.Release()
//
// # Flows
//
// Flows represent short-span operations with their own execution context,
// re-running their factory on every Exec (unlike an Executor, which caches):
//
//	db := pumped.Provide(func(ctx *pumped.ResolveCtx) (*DB, error) {
//	    return OpenDB(), nil
//	})
//
//	fetchUser := pumped.Flow1[int](pumped.Dep(db),
//	    func(execCtx *pumped.ExecutionCtx, deps *pumped.ResolvedDeps, userID int) (*User, error) {
//	        database := pumped.DepValue[*DB](deps, "dep0")
//	        return database.Query("SELECT * FROM users WHERE id = ?", userID)
//	    },
//	    pumped.WithFlowTag[int, *User](pumped.FlowName(), "fetchUser"),
//	)
//
//	user, execCtx, err := pumped.Exec(scope, context.Background(), fetchUser, 123)
//
// A flow's first type parameter is its input: Exec and Exec1 both take an
// input argument of that type, passed straight through to the factory.
//
// Sub-flows share the parent's scope and derive their cancellation from the
// parent's context, building a hierarchical execution tree. Exec1 accepts an
// optional trailing key; when given and the parent's journal already holds
// that key, the recorded result is served without re-running the sub-flow:
//
//	parentFlow := pumped.Flow1[int](pumped.Dep(db),
//	    func(execCtx *pumped.ExecutionCtx, deps *pumped.ResolvedDeps, userID int) (string, error) {
//	        user, _, err := pumped.Exec1(execCtx, fetchUserFlow, userID, "fetch-user")
//	        if err != nil {
//	            return "", err
//	        }
//	        orders, _, err := pumped.Exec1(execCtx, fetchOrdersFlow, userID)
//	        if err != nil {
//	            return "", err
//	        }
//	        return fmt.Sprintf("%s has %d orders", user.Name, len(orders)), nil
//	    },
//	)
//
// # Execution Context
//
// ExecutionCtx carries per-invocation data and a tag lookup chain that walks
// its own data, its parent context, the flow's static tags, then the scope:
//
//	execCtx.Set(somekey, "user-123")
//	val, ok := someTag.ReadOK(execCtx)
//
// Step memoizes a sub-computation within one execution by key, so repeated
// calls with the same key return the first call's recorded result:
//
//	profile, err := pumped.Step(execCtx, "load-profile", userID, func() (*Profile, error) {
//	    return loadProfile(userID)
//	})
//
// execCtx.OnClose registers cleanup that runs, in LIFO order, when the
// execution finishes or is cancelled.
//
// execCtx.ResetJournal(pattern) clears journal entries whose key contains
// pattern as a substring (an empty pattern clears everything), so a
// subsequent Step or keyed Exec1 call re-runs instead of replaying the old
// result. execCtx.ThrowIfCancelled returns a *CancelledError when this
// execution, or an ancestor it derives its context from, has been
// cancelled, and nil otherwise.
//
// # Tags
//
// Tags provide type-safe, identity-by-pointer metadata for executors,
// scopes, and execution contexts:
//
//	versionTag := pumped.NewTag[string]("version")
//	poolSizeTag := pumped.NewTag[int]("db.pool_size", pumped.WithDefault(10))
//
//	exec := pumped.Provide(
//	    func(ctx *pumped.ResolveCtx) (int, error) { return 42, nil },
//	    pumped.WithTag[int](versionTag, "1.0.0"),
//	)
//
//	scope := pumped.NewScope(
//	    pumped.WithScopeTag[int](poolSizeTag, 10),
//	)
//
//	version, ok := versionTag.ReadOK(exec)
//	poolSize := poolSizeTag.Read(scope)
//
// Tag.Collect gathers a tag's value from every source that sets it:
//
//	versions := versionTag.Collect(scope1, scope2, scope3)
//
// # Extensions
//
// Extensions provide cross-cutting concerns through lifecycle hooks. Wrap
// wraps every resolve/release operation; OnFlowStart/OnFlowEnd/OnFlowPanic
// wrap flow execution directly (flows do not go through Wrap):
//
//	type LoggingExtension struct {
//	    pumped.BaseExtension
//	}
//
//	func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
//	    log.Printf("starting %s", op.Kind)
//	    result, err := next()
//	    log.Printf("finished %s", op.Kind)
//	    return result, err
//	}
//
//	scope := pumped.NewScope(
//	    pumped.WithExtension(&LoggingExtension{
//	        BaseExtension: pumped.NewBaseExtension("logging"),
//	    }),
//	)
//
// # Resource Cleanup
//
// Register cleanup functions for automatic resource management:
//
//	db := pumped.Provide(func(ctx *pumped.ResolveCtx) (*DB, error) {
//	    database := OpenDB()
//	    ctx.OnCleanup(func() error {
//	        return database.Close()
//	    })
//	    return database, nil
//	})
//
// Cleanups run on Controller.Release and on scope.Dispose, in strict reverse
// order of registration across the whole scope.
//
// # Testing with Presets
//
// Replace executors with test doubles without touching the code under test:
//
//	realDB := pumped.Provide(func(ctx *pumped.ResolveCtx) (*DB, error) {
//	    return ConnectToDB(), nil
//	})
//
//	testScope := pumped.NewScope(
//	    pumped.WithPreset(realDB, &DB{mock: true}),  // value preset
//	)
//
//	mockDBExecutor := pumped.Provide(func(ctx *pumped.ResolveCtx) (*DB, error) {
//	    return &DB{mock: true}, nil
//	})
//
//	testScope := pumped.NewScope(
//	    pumped.WithPreset(realDB, mockDBExecutor),  // executor preset
//	)
//
// # Execution Tree
//
// Query execution history for observability:
//
//	tree := scope.GetExecutionTree()
//
//	roots := tree.GetRoots()
//
//	tree.Walk(rootID, func(node *pumped.ExecutionNode) bool {
//	    name, _ := pumped.FlowName().ReadOK(node)
//	    status, _ := pumped.Status().ReadOK(node)
//	    fmt.Printf("flow: %v, status: %v\n", name, status)
//	    return true
//	})
//
//	failed := tree.Filter(func(node *pumped.ExecutionNode) bool {
//	    status, ok := pumped.Status().ReadOK(node)
//	    return ok && status == pumped.ExecutionStatusFailed
//	})
//
// # Parallel Execution
//
// Execute multiple tasks concurrently against an ExecutionCtx:
//
//	results, err := pumped.RunParallel(execCtx.Parallel(), task1, task2, task3)
//
//	settled := pumped.RunParallelSettled(execCtx.Parallel(pumped.WithCollectErrors()), task1, task2, task3)
//	fmt.Println(settled.Stats.Fulfilled, settled.Stats.Rejected)
//
// RunParallel fails fast: the first error cancels every other task's derived
// context. RunParallelSettled never short-circuits and reports each task's
// outcome individually.
//
// # Best Practices
//
//  1. Use executors for long-lived resources (DB connections, configs, services)
//  2. Use flows for short-span operations (HTTP requests, queries, computations)
//  3. Prefer eager dependencies; reach for Lazy only when resolution is conditional
//  4. Use tags for metadata, not data passing (use execution context for data)
//  5. Register cleanup functions for all resources that need disposal
//  6. Use extensions for cross-cutting concerns (logging, tracing, metrics)
//  7. Use presets for testing to replace real dependencies with mocks
//
// # Thread Safety
//
// All operations are thread-safe:
//   - Scopes can be resolved from concurrently; concurrent resolves of the
//     same executor coalesce into a single factory call
//   - Controllers can be used from multiple goroutines
//   - Flows can execute in parallel using ExecutionCtx.Parallel
package pumped
