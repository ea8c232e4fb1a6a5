// Package storage defines the uniform transactional access contract that
// higher layers (schema registry, object store, edge store) use, and the
// semaphore that bounds how many transactions may be in flight at once.
package storage

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// Backend is implemented by every storage engine this service can run
// against. A native relational engine with xid8/pg_snapshot support can
// satisfy it directly; an in-process backend emulates the same contract
// with a monotonic counter and (xmin, xmax, in-flight) tuples.
type Backend interface {
	// Begin opens a transaction. The returned Transaction is not safe for
	// concurrent use by more than one goroutine.
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction is the capability every component writes and reads through.
// All reads and writes inside one Transaction occur under the backend's
// serializable or snapshot-isolation guarantee; a failure at any point
// rolls the whole transaction back.
type Transaction interface {
	// AllocateXid atomically allocates the next transaction id and returns
	// the snapshot that will be in effect once this transaction commits.
	AllocateXid(ctx context.Context) (xid.Xid, snapshot.Snapshot, error)

	// Snapshot returns the current read snapshot without allocating an xid.
	Snapshot(ctx context.Context) (snapshot.Snapshot, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool bounds the number of concurrently in-flight transactions, modelling
// the "one connection per in-flight transaction" resource limit. Acquiring
// past the bound waits for a free slot until ctx ends, then yields
// RESOURCE_EXHAUSTED rather than blocking forever.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool builds a Pool that allows up to maxInFlight concurrent transactions.
func NewPool(maxInFlight int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(maxInFlight)}
}

// Acquire reserves one transaction slot. If the pool is saturated it
// waits for a slot and fails with RESOURCE_EXHAUSTED only if ctx is
// cancelled or expires while waiting.
func (p *Pool) Acquire(ctx context.Context) error {
	if !p.sem.TryAcquire(1) {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return apierrors.ResourceExhausted("no backend connection available")
		}
	}
	return nil
}

// Release returns a transaction slot to the pool.
func (p *Pool) Release() { p.sem.Release(1) }
