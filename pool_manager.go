package pumped

import (
	"sync"
)

// PoolManager pools the per-resolution allocations scope.go makes on every
// factory invocation. ResolveCtx and its cleanup slice are short-lived and
// high-frequency (one pair per executor resolved), which makes them worth
// pooling; ExecutionCtx is not, since its journal/closer/cancellation state
// varies in shape per flow and would need as much reset logic as it saves.
type PoolManager struct {
	resolveCtxPool sync.Pool
	cleanupPool    sync.Pool

	metrics PoolMetrics
}

// PoolMetrics tracks pool usage statistics.
type PoolMetrics struct {
	mu               sync.RWMutex
	resolveCtxHits   uint64
	resolveCtxMisses uint64
	cleanupHits      uint64
	cleanupMisses    uint64
}

// NewPoolManager creates a new pool manager with initialized pools.
func NewPoolManager() *PoolManager {
	pm := &PoolManager{
		resolveCtxPool: sync.Pool{
			New: func() any {
				return &ResolveCtx{cleanups: make([]cleanupEntry, 0, 8)}
			},
		},
		cleanupPool: sync.Pool{
			New: func() any {
				return make([]cleanupEntry, 0, 8)
			},
		},
	}
	return pm
}

// AcquireResolveCtx gets a ResolveCtx from the pool or creates a new one.
func (pm *PoolManager) AcquireResolveCtx(scope *Scope, executor AnyExecutor) *ResolveCtx {
	ctx, ok := pm.resolveCtxPool.Get().(*ResolveCtx)
	if ok {
		ctx.scope = scope
		ctx.executor = executor
		ctx.cleanups = ctx.cleanups[:0]

		pm.metrics.mu.Lock()
		pm.metrics.resolveCtxHits++
		pm.metrics.mu.Unlock()
	} else {
		ctx = &ResolveCtx{
			scope:    scope,
			executor: executor,
			cleanups: make([]cleanupEntry, 0, 8),
		}

		pm.metrics.mu.Lock()
		pm.metrics.resolveCtxMisses++
		pm.metrics.mu.Unlock()
	}
	return ctx
}

// ReleaseResolveCtx returns a ResolveCtx to the pool. Callers must not hold
// onto the cleanup entries past this point — registerCleanups copies what it
// needs before release.
func (pm *PoolManager) ReleaseResolveCtx(ctx *ResolveCtx) {
	if ctx == nil {
		return
	}
	ctx.scope = nil
	ctx.executor = nil
	ctx.cleanups = ctx.cleanups[:0]
	pm.resolveCtxPool.Put(ctx)
}

// AcquireCleanupSlice gets a cleanup slice from the pool or creates a new one.
func (pm *PoolManager) AcquireCleanupSlice() []cleanupEntry {
	slice, ok := pm.cleanupPool.Get().([]cleanupEntry)
	if ok {
		slice = slice[:0]
		pm.metrics.mu.Lock()
		pm.metrics.cleanupHits++
		pm.metrics.mu.Unlock()
	} else {
		slice = make([]cleanupEntry, 0, 8)
		pm.metrics.mu.Lock()
		pm.metrics.cleanupMisses++
		pm.metrics.mu.Unlock()
	}
	return slice
}

// ReleaseCleanupSlice returns a cleanup slice to the pool.
func (pm *PoolManager) ReleaseCleanupSlice(slice []cleanupEntry) {
	if slice == nil {
		return
	}
	slice = slice[:0]
	pm.cleanupPool.Put(slice)
}

// GetMetrics returns a copy of the current pool metrics.
func (pm *PoolManager) GetMetrics() PoolMetrics {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()
	return PoolMetrics{
		resolveCtxHits:   pm.metrics.resolveCtxHits,
		resolveCtxMisses: pm.metrics.resolveCtxMisses,
		cleanupHits:      pm.metrics.cleanupHits,
		cleanupMisses:    pm.metrics.cleanupMisses,
	}
}

// ResetMetrics resets all pool metrics to zero.
func (pm *PoolManager) ResetMetrics() {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()
	pm.metrics.resolveCtxHits = 0
	pm.metrics.resolveCtxMisses = 0
	pm.metrics.cleanupHits = 0
	pm.metrics.cleanupMisses = 0
}

var globalPoolManager = NewPoolManager()

// GetGlobalPoolManager returns the global pool manager instance.
func GetGlobalPoolManager() *PoolManager {
	return globalPoolManager
}
