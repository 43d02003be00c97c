package pumped

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Scope owns a resolution cache, a preset table, registered extensions and
// every cleanup callback registered against it. Values and cleanups never
// cross scope boundaries; a child scope (none of this library's Non-goals
// forbid composing scopes, but none of the examples needed it either) would
// be a second, independent Scope.
type Scope struct {
	mu         sync.RWMutex
	cache      *TypeSafeCache[*cacheSlot]
	tags       *TypeSafeCache[any]
	tagsMulti  map[any][]any
	extensions []Extension
	presets    map[AnyExecutor]preset

	cleanupMu sync.Mutex
	cleanups  map[AnyExecutor][]cleanupEntry
	cleanupSeq atomic.Uint64

	graph    *DependencyGraph
	execTree *ExecutionTree

	disposed bool

	id string
}

// cacheSlot is a single resolution cache entry. ready is closed once the
// factory has run to completion (success or failure), letting every
// goroutine racing on the same uncached executor block on the same
// in-flight computation instead of invoking the factory twice.
type cacheSlot struct {
	ready chan struct{}
	value any
	err   error
}

type preset struct {
	value    any
	executor AnyExecutor
	isValue  bool
}

// ScopeOption configures a Scope at construction.
type ScopeOption func(*Scope)

// WithScopeTag sets a tag's value on the scope being built.
func WithScopeTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		tag.MustSet(s, val)
	}
}

// WithExtension registers an extension on the scope being built.
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithPreset overrides executor with replacement, which must be either a
// literal value of type T or another *Executor[T]. Presets exist for
// testing: swap a real dependency for a canned value or a fake executor
// without touching the code under test.
func WithPreset[T any](executor *Executor[T], replacement any) ScopeOption {
	return func(s *Scope) {
		switch r := replacement.(type) {
		case *Executor[T]:
			s.presets[executor] = preset{executor: r, isValue: false}
		case T:
			s.presets[executor] = preset{value: r, isValue: true}
		default:
			panic(fmt.Sprintf("preset for %T must be a value of that type or a *Executor[%T]", *new(T), *new(T)))
		}
	}
}

// NewScope creates a scope ready for resolution.
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		cache:     NewTypeSafeCache[*cacheSlot](0),
		tags:      NewTypeSafeCache[any](0),
		tagsMulti: make(map[any][]any),
		presets:   make(map[AnyExecutor]preset),
		cleanups:  make(map[AnyExecutor][]cleanupEntry),
		graph:     NewDependencyGraph(),
		execTree:  newExecutionTree(1000),
		id:        uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the scope's unique identifier, useful for correlating logs
// and traces across scopes in a process that creates more than one.
func (s *Scope) ID() string { return s.id }

// Resolve resolves executor's value in scope, computing it via its
// factory on first use and memoizing the result. It is the free-function
// form used throughout this package because methods cannot declare their
// own type parameter in Go.
func Resolve[T any](s *Scope, executor *Executor[T]) (T, error) {
	val, err := s.resolve(executor, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return val.(T), nil
}

func (s *Scope) nextCleanupSeq() uint64 {
	return s.cleanupSeq.Add(1)
}

// peek returns the cached value for executor without resolving it.
func (s *Scope) peek(executor AnyExecutor) (any, bool) {
	slot, ok := s.cache.Load(executor)
	if !ok {
		return nil, false
	}
	<-slot.ready
	if slot.err != nil {
		return nil, false
	}
	return slot.value, true
}

// resolve is the type-erased resolution algorithm. chain is the list of
// executors currently being resolved on this call stack, used to detect a
// dependency on an executor still in flight — a cycle.
func (s *Scope) resolve(executor AnyExecutor, chain []AnyExecutor) (any, error) {
	s.mu.RLock()
	pr, hasPreset := s.presets[executor]
	s.mu.RUnlock()
	if hasPreset {
		return s.resolvePreset(executor, pr, chain)
	}

	for _, inflight := range chain {
		if inflight == executor {
			full := make([]AnyExecutor, len(chain), len(chain)+1)
			copy(full, chain)
			full = append(full, executor)
			return nil, &CycleError{Chain: full}
		}
	}

	if slot, ok := s.cache.Load(executor); ok {
		<-slot.ready
		return slot.value, slot.err
	}

	slot := &cacheSlot{ready: make(chan struct{})}
	s.mu.Lock()
	if existing, ok := s.cache.Load(executor); ok {
		s.mu.Unlock()
		<-existing.ready
		return existing.value, existing.err
	}
	s.cache.Store(executor, slot)
	s.mu.Unlock()

	value, err := s.runFactory(executor, chain)
	if err != nil {
		s.cache.Delete(executor)
		slot.err = err
		close(slot.ready)
		return nil, err
	}
	slot.value = value
	close(slot.ready)
	return value, nil
}

func (s *Scope) resolvePreset(executor AnyExecutor, pr preset, chain []AnyExecutor) (any, error) {
	if !pr.isValue {
		return s.resolve(pr.executor, chain)
	}

	if slot, ok := s.cache.Load(executor); ok {
		<-slot.ready
		return slot.value, slot.err
	}
	slot := &cacheSlot{ready: make(chan struct{}), value: pr.value}
	close(slot.ready)
	s.mu.Lock()
	s.cache.Store(executor, slot)
	s.mu.Unlock()
	return pr.value, nil
}

func (s *Scope) runFactory(executor AnyExecutor, chain []AnyExecutor) (any, error) {
	newChain := make([]AnyExecutor, len(chain), len(chain)+1)
	copy(newChain, chain)
	newChain = append(newChain, executor)

	for _, dep := range executor.dependencies().entries {
		if dep.depKind() == depKindExec {
			if dependency, ok := dep.(AnyExecutor); ok {
				s.graph.AddDependency(executor, dependency)
			}
		}
	}

	resolved, err := s.buildResolvedDeps(executor.dependencies(), newChain)
	if err != nil {
		return nil, err
	}

	rc := globalPoolManager.AcquireResolveCtx(s, executor)
	defer globalPoolManager.ReleaseResolveCtx(rc)

	s.mu.RLock()
	exts := append([]Extension{}, s.extensions...)
	s.mu.RUnlock()

	op := &Operation{Kind: OpResolve, Executor: executor, Scope: s}
	next := func() (any, error) {
		return executor.invokeFactory(rc, resolved)
	}
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		prev := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), prev, op)
		}
	}

	value, err := next()
	if err != nil {
		ferr := &FactoryError{Executor: executor, Cause: err}
		for _, ext := range exts {
			ext.OnError(ferr, op, s)
		}
		return nil, ferr
	}

	s.registerCleanups(executor, rc.cleanups)
	return value, nil
}

func (s *Scope) buildResolvedDeps(deps *Deps, chain []AnyExecutor) (*ResolvedDeps, error) {
	out := &ResolvedDeps{values: make(map[string]any, len(deps.order))}
	for _, name := range deps.order {
		dep := deps.entries[name]
		switch dep.depKind() {
		case depKindExec:
			executor := dep.(AnyExecutor)
			val, err := s.resolve(executor, chain)
			if err != nil {
				return nil, err
			}
			out.values[name] = val
		case depKindLazy:
			ld := dep.(lazyDependency)
			out.values[name] = ld.makeController(s, ld.executor)
		case depKindTag:
			td := dep.(tagDependency)
			switch td.mode {
			case tagBindRequired:
				val, err := td.extract(s)
				if err != nil {
					return nil, err
				}
				out.values[name] = val
			case tagBindOptional:
				out.values[name] = td.read(s)
			case tagBindAll:
				out.values[name] = td.collect(s)
			}
		}
	}
	return out, nil
}

func (s *Scope) registerCleanups(executor AnyExecutor, entries []cleanupEntry) {
	if len(entries) == 0 {
		return
	}
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups[executor] = append(s.cleanups[executor], entries...)
}

// release runs executor's registered cleanups and clears its cache entry.
func (s *Scope) release(executor AnyExecutor) error {
	s.mu.RLock()
	exts := append([]Extension{}, s.extensions...)
	s.mu.RUnlock()

	op := &Operation{Kind: OpRelease, Executor: executor, Scope: s}
	var runErr error
	next := func() (any, error) {
		s.cleanupMu.Lock()
		entries := s.cleanups[executor]
		delete(s.cleanups, executor)
		s.cleanupMu.Unlock()

		s.cache.Delete(executor)
		return nil, s.runCleanups(entries, executor, "release", exts)
	}
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		prev := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), prev, op)
		}
	}
	_, runErr = next()
	return runErr
}

// runCleanups runs entries in descending seq order (last registered,
// first run) and returns the first unhandled error, if any. Every
// extension is offered the error via OnCleanupError before it is
// considered unhandled.
func (s *Scope) runCleanups(entries []cleanupEntry, executor AnyExecutor, cleanupContext string, exts []Extension) error {
	sorted := make([]cleanupEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].seq > sorted[j].seq })

	var first error
	for _, entry := range sorted {
		if err := entry.fn(); err != nil {
			cleanupErr := &CleanupError{ExecutorID: executor, Err: err, Context: cleanupContext}
			handled := false
			for _, ext := range exts {
				if ext.OnCleanupError(cleanupErr) {
					handled = true
					break
				}
			}
			if !handled && first == nil {
				first = err
			}
		}
	}
	return first
}

// Dispose runs every extension's Dispose hook, then every registered
// cleanup across the whole scope in strict reverse-registration order,
// then discards the cache. It is idempotent: a second call is a no-op.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	exts := append([]Extension{}, s.extensions...)
	s.mu.Unlock()

	var causes []error
	for _, ext := range exts {
		if err := ext.Dispose(s); err != nil {
			causes = append(causes, fmt.Errorf("extension %s: %w", ext.Name(), err))
		}
	}

	s.cleanupMu.Lock()
	var all []cleanupEntry
	var execs []AnyExecutor
	for executor, entries := range s.cleanups {
		execs = append(execs, executor)
		all = append(all, entries...)
	}
	s.cleanups = make(map[AnyExecutor][]cleanupEntry)
	s.cleanupMu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	for _, entry := range all {
		if err := entry.fn(); err != nil {
			cleanupErr := &CleanupError{ExecutorID: entry.executor, Err: err, Context: "dispose"}
			handled := false
			for _, ext := range exts {
				if ext.OnCleanupError(cleanupErr) {
					handled = true
					break
				}
			}
			if !handled {
				causes = append(causes, err)
			}
		}
	}

	s.cache = NewTypeSafeCache[*cacheSlot](0)

	if len(causes) > 0 {
		return &DisposalError{Causes: causes}
	}
	return nil
}

// UseExtension registers ext, re-sorting the extension chain by Order so
// Wrap nests in a stable, predictable sequence regardless of registration
// order.
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.Slice(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()
	return ext.Init(s)
}

// GetTag retrieves an untyped tag value set directly on the scope.
func (s *Scope) GetTag(key any) (any, bool) {
	return s.tags.Load(key)
}

// SetTag stores val for key on the scope, and appends it to that key's
// write history so an AllTag dependency can collect every value ever
// written, not just the latest.
func (s *Scope) SetTag(key any, val any) {
	s.tags.Store(key, val)
	s.mu.Lock()
	s.tagsMulti[key] = append(s.tagsMulti[key], val)
	s.mu.Unlock()
}

func collectScopeTag[T any](s *Scope, tag Tag[T]) []T {
	s.mu.RLock()
	raw := append([]any{}, s.tagsMulti[tag.key()]...)
	s.mu.RUnlock()
	out := make([]T, 0, len(raw))
	for _, v := range raw {
		if typed, ok := v.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// GetExecutionTree returns the scope's execution tree for querying past
// flow executions.
func (s *Scope) GetExecutionTree() *ExecutionTree {
	return s.execTree
}

func (s *Scope) generateExecutionID() string {
	return "exec-" + uuid.NewString()
}

// DependencyGraph exposes the scope's recorded dependency edges for
// diagnostics. CycleError does not read it; it carries the resolve chain.
func (s *Scope) DependencyGraph() *DependencyGraph {
	return s.graph
}

// ExportDependencyGraph returns a snapshot of the scope's dependency graph
// as a plain adjacency map, for extensions that want to render it without
// depending on DependencyGraph's internals.
func (s *Scope) ExportDependencyGraph() map[AnyExecutor][]AnyExecutor {
	return s.graph.Export()
}
