package coordinator

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	errs "github.com/Brainwires/project-rag/internal/errors"
)

// MaxLockDuration is how long an operation may hold the per-root indexing
// lock before it is presumed crashed (spec §5).
const MaxLockDuration = 30 * time.Minute

// operation tracks one in-flight (or just-completed) indexing run for a
// single root.
type operation struct {
	id        uuid.UUID
	startedAt time.Time
	active    atomic.Bool

	mu          sync.Mutex
	subscribers []chan IndexResult
	done        bool
}

// subscribe registers a waiter channel of capacity 1. Callers must hold
// lockTable.mu (the map lock) when calling this, matching the spec's "fan
// out implemented as a slice of subscriber channels under the same map
// lock" requirement.
func (op *operation) subscribe() <-chan IndexResult {
	ch := make(chan IndexResult, 1)
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.done {
		// Stale: publish already happened. Caller (tryAcquire) is
		// expected to have already checked active before subscribing;
		// this branch only protects against a race on the boundary.
		close(ch)
		return ch
	}
	op.subscribers = append(op.subscribers, ch)
	return ch
}

// broadcast sends r to every subscriber exactly once and marks the
// operation done. Safe to call at most once per operation.
func (op *operation) broadcast(r IndexResult) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.done {
		return
	}
	op.done = true
	for _, ch := range op.subscribers {
		ch <- r
	}
}

// lockTable is the Coordinator's process-global per-root indexing lock,
// matching spec §5's inProgress map guarded by a sync.RWMutex.
type lockTable struct {
	mu         sync.RWMutex
	inProgress map[string]*operation
}

func newLockTable() *lockTable {
	return &lockTable{inProgress: make(map[string]*operation)}
}

// acquireResult is either an acquired guard (own the lock, do the work) or
// a waiter channel (someone else owns the lock; await their broadcast).
type acquireResult struct {
	guard  *guard
	waiter <-chan IndexResult
}

// tryAcquire implements spec §5's tryAcquire(root): canonicalise, then
// either adopt/replace a stale entry, subscribe as a waiter, or insert a
// fresh operation and return a guard.
func (t *lockTable) tryAcquire(root string) (acquireResult, error) {
	canonical, err := canonicalizeRoot(root)
	if err != nil {
		return acquireResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.inProgress[canonical]; ok {
		if !existing.active.Load() {
			// Stale completion record.
			delete(t.inProgress, canonical)
		} else if time.Since(existing.startedAt) > MaxLockDuration {
			// Presumed crashed: release any waiters with a synthetic error.
			existing.broadcast(IndexResult{Root: canonical, Err: errs.IndexingInterrupted(canonical)})
			existing.active.Store(false)
			delete(t.inProgress, canonical)
		} else {
			return acquireResult{waiter: existing.subscribe()}, nil
		}
	}

	op := &operation{id: uuid.New(), startedAt: time.Now()}
	op.active.Store(true)
	t.inProgress[canonical] = op

	return acquireResult{guard: &guard{table: t, root: canonical, op: op}}, nil
}

// canonicalizeRoot resolves symlinks and normalizes the path so the same
// logical root always maps to the same lock-table key.
func canonicalizeRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root may not exist yet on a dry run; fall back to the
		// absolute, cleaned path rather than failing acquisition.
		return filepath.Clean(abs), nil
	}
	return filepath.Clean(resolved), nil
}

// guard is held by the goroutine that won the race to index a root. It
// guarantees, via Release (deferred by the caller), that exactly one
// IndexResult is broadcast to subscribers even if the holder panics,
// errors, or has its context cancelled before calling Complete.
type guard struct {
	table     *lockTable
	root      string
	op        *operation
	completed atomic.Bool
}

// Complete publishes the final result to subscribers. Must be called at
// most once; Release still runs afterward and is a no-op with respect to
// broadcasting.
func (g *guard) Complete(r IndexResult) {
	if g.completed.CompareAndSwap(false, true) {
		g.op.broadcast(r)
	}
}

// Release removes the operation from the lock table and, if Complete was
// never called, broadcasts a synthetic IndexingInterrupted result so
// waiters do not hang forever. Callers must `defer g.Release()` immediately
// after a successful tryAcquire.
func (g *guard) Release() {
	if g.completed.CompareAndSwap(false, true) {
		g.op.broadcast(IndexResult{Root: g.root, Err: errs.IndexingInterrupted(g.root)})
	}
	g.op.active.Store(false)

	g.table.mu.Lock()
	defer g.table.mu.Unlock()
	if current, ok := g.table.inProgress[g.root]; ok && current == g.op {
		delete(g.table.inProgress, g.root)
	}
}
