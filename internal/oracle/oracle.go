// Package oracle allocates totally-ordered transaction ids, persists the
// transaction record that goes with each one, and turns snapshots into
// opaque zookies and back.
package oracle

import (
	"context"
	"time"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/xid"
	"github.com/vertexdb/vertexdb/internal/zookie"
)

// Oracle is the serialization point for every write, and the
// encoder/decoder for client-visible zookies.
type Oracle struct {
	backend  storage.Backend
	tables   storage.GraphTables
	advancer storage.Advancer
	pool     *storage.Pool
	codec    *zookie.Codec
}

// New builds an Oracle over a concrete backend. tables and advancer are
// typically the same value as backend, asserted to the narrower
// interfaces the backend actually implements.
func New(backend storage.Backend, tables storage.GraphTables, advancer storage.Advancer, pool *storage.Pool, codec *zookie.Codec) *Oracle {
	return &Oracle{backend: backend, tables: tables, advancer: advancer, pool: pool, codec: codec}
}

// Tables exposes the backend's versioned-row access surface to the store
// packages built on top of the oracle.
func (o *Oracle) Tables() storage.GraphTables { return o.tables }

// Txn wraps a backend transaction together with the pool slot it holds,
// so callers cannot forget to release the slot.
type Txn struct {
	oracle *Oracle
	tx     storage.Transaction
	done   bool
}

// Begin acquires a pool slot and opens a backend transaction. Callers
// must call Commit or Rollback; a Rollback after Commit is a no-op, so
// deferring Rollback right after Begin is safe.
func (o *Oracle) Begin(ctx context.Context) (*Txn, error) {
	if err := o.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	tx, err := o.backend.Begin(ctx)
	if err != nil {
		o.pool.Release()
		return nil, apierrors.Internal("failed to begin transaction", err)
	}
	return &Txn{oracle: o, tx: tx}, nil
}

// AllocateXid allocates the next xid and returns the snapshot that will
// hold once this transaction commits.
func (t *Txn) AllocateXid(ctx context.Context) (xid.Xid, snapshot.Snapshot, error) {
	x, snap, err := t.tx.AllocateXid(ctx)
	if err != nil {
		return 0, snapshot.Snapshot{}, apierrors.Internal("failed to allocate xid", err)
	}
	return x, snap, nil
}

// Snapshot returns the current read snapshot without allocating an xid.
func (t *Txn) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	snap, err := t.tx.Snapshot(ctx)
	if err != nil {
		return snapshot.Snapshot{}, apierrors.Internal("failed to read snapshot", err)
	}
	return snap, nil
}

// Commit commits the backend transaction and releases the pool slot.
func (t *Txn) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.oracle.pool.Release()
	if err := t.tx.Commit(ctx); err != nil {
		return apierrors.Internal("commit failed", err)
	}
	return nil
}

// Rollback aborts the backend transaction and releases the pool slot. It
// is safe to call after a successful Commit (a no-op).
func (t *Txn) Rollback(ctx context.Context) {
	if t.done {
		return
	}
	t.done = true
	defer t.oracle.pool.Release()
	_ = t.tx.Rollback(ctx)
}

// CurrentSnapshot reads the latest committed snapshot without allocating
// an xid, used by full_consistency and minimize_latency resolution.
func (o *Oracle) CurrentSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	txn, err := o.Begin(ctx)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)
	return txn.Snapshot(ctx)
}

// WaitForAdvance blocks until the backend's snapshot advances or ctx ends.
func (o *Oracle) WaitForAdvance(ctx context.Context) error {
	return o.advancer.WaitForAdvance(ctx)
}

// SnapshotNear resolves a wall-clock timestamp to the snapshot that was in
// effect at the most recent transaction committed at or before at. It is
// internal groundwork for a future after(timestamp) consistency mode and
// is not exposed over any RPC; it fails with NotFound if at predates every
// recorded transaction.
func (o *Oracle) SnapshotNear(at time.Time) (snapshot.Snapshot, error) {
	rec, found := o.tables.TransactionNear(at)
	if !found {
		return snapshot.Snapshot{}, apierrors.NotFound("no transaction recorded at or before the given time")
	}
	// The record's in-flight set was taken just after rec.Xid was
	// allocated, so it still lists rec.Xid itself; leave it out so the
	// transaction the snapshot is anchored on is visible.
	inFlight := make([]xid.Xid, 0, len(rec.InFlight))
	for _, x := range rec.InFlight {
		if x != rec.Xid {
			inFlight = append(inFlight, x)
		}
	}
	return snapshot.New(0, rec.Xid+1, inFlight), nil
}

// EncodeSnapshot turns a snapshot into an opaque, HMAC-authenticated zookie.
func (o *Oracle) EncodeSnapshot(s snapshot.Snapshot) string {
	return o.codec.EncodeSnapshot(s)
}

// DecodeZookie authenticates and parses a client-supplied zookie.
func (o *Oracle) DecodeZookie(token string) (zookie.Zookie, error) {
	return o.codec.Decode(token)
}

// ResolveZookie decodes a zookie into a concrete snapshot, resolving the
// AtXid variant against the current in-flight set.
func (o *Oracle) ResolveZookie(ctx context.Context, token string) (snapshot.Snapshot, error) {
	z, err := o.codec.Decode(token)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if !z.HasXid {
		return z.Snapshot, nil
	}
	current, err := o.CurrentSnapshot(ctx)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	// A snapshot in which everything up to and including z.AtXid is
	// visible, filtered by whatever is still genuinely in flight right now.
	return snapshot.New(0, z.AtXid+1, current.InFlight), nil
}
