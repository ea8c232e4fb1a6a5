// Package memstore is the in-process storage backend: it emulates xid
// allocation with a monotonic counter and snapshots with (xmin, xmax,
// in-flight) tuples.
package memstore

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/storage/index"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// MemStore implements both storage.Backend and storage.GraphTables.
type MemStore struct {
	mu sync.RWMutex

	// atomicMu serializes multi-step graph mutations (cycle-check-then-
	// insert, cascade-tombstone) that must not interleave with each
	// other. It is distinct from mu, which individual GraphTables
	// methods take for their own duration only; Atomically callers still
	// go through those same methods, so the two locks must not be the
	// same one or a self-deadlock follows.
	atomicMu sync.Mutex

	nextXid      xid.Xid
	trueInFlight map[xid.Xid]struct{}
	aborted      map[xid.Xid]struct{}
	advanceCh    chan struct{}

	nextObjectID int64
	objects      *index.SkipList[*model.Object]
	objectMeta   map[int64][]*model.ObjectMetadataVersion

	nextEdgeID  int64
	edges       *index.SkipList[*model.Edge]
	edgeMeta    map[int64][]*model.EdgeMetadataVersion
	edgesByFrom map[int64][]int64
	edgesByTo   map[int64][]int64

	nextSchemaID int64
	schemasByType map[string]*model.SchemaRecord

	txRecords *index.SkipList[model.TransactionRecord]

	objectCache *lru.Cache[int64, *model.Object]
	edgeCache   *lru.Cache[int64, *model.Edge]

	logger *zap.Logger
}

// New builds an empty in-process backend. cacheSize bounds the hot-row
// LRU caches fronting the object and edge tables.
func New(cacheSize int, logger *zap.Logger) *MemStore {
	objectCache, _ := lru.New[int64, *model.Object](cacheSize)
	edgeCache, _ := lru.New[int64, *model.Edge](cacheSize)
	return &MemStore{
		nextXid:       1,
		trueInFlight:  make(map[xid.Xid]struct{}),
		aborted:       make(map[xid.Xid]struct{}),
		advanceCh:     make(chan struct{}),
		objects:       index.New[*model.Object](),
		objectMeta:    make(map[int64][]*model.ObjectMetadataVersion),
		edges:         index.New[*model.Edge](),
		edgeMeta:      make(map[int64][]*model.EdgeMetadataVersion),
		edgesByFrom:   make(map[int64][]int64),
		edgesByTo:     make(map[int64][]int64),
		schemasByType: make(map[string]*model.SchemaRecord),
		txRecords:     index.New[model.TransactionRecord](),
		objectCache:   objectCache,
		edgeCache:     edgeCache,
		logger:        logger,
	}
}

// snapshotLocked computes the current snapshot. Callers must hold at
// least a read lock.
func (m *MemStore) snapshotLocked() snapshot.Snapshot {
	special := make([]xid.Xid, 0, len(m.trueInFlight)+len(m.aborted))
	xmin := m.nextXid
	for x := range m.trueInFlight {
		special = append(special, x)
		if x < xmin {
			xmin = x
		}
	}
	for x := range m.aborted {
		special = append(special, x)
		if x < xmin {
			xmin = x
		}
	}
	return snapshot.New(xmin, m.nextXid, special)
}

// waitForAdvance blocks until the next commit or ctx is done.
func (m *MemStore) waitForAdvance(ctx context.Context) error {
	m.mu.RLock()
	ch := m.advanceCh
	m.mu.RUnlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Atomically runs fn while holding the store's cross-table mutation lock,
// so cycle-check-then-insert and cascade-tombstone sequences observe a
// consistent view for their whole duration even though the individual
// GraphTables calls fn makes are each separately locked too.
func (m *MemStore) Atomically(fn func() error) error {
	m.atomicMu.Lock()
	defer m.atomicMu.Unlock()
	return fn()
}

// --- storage.Backend ---

type transaction struct {
	store       *MemStore
	allocatedXid xid.Xid
	hasXid       bool
	done         bool
}

func (m *MemStore) Begin(ctx context.Context) (storage.Transaction, error) {
	return &transaction{store: m}, nil
}

func (t *transaction) AllocateXid(ctx context.Context) (xid.Xid, snapshot.Snapshot, error) {
	m := t.store
	m.mu.Lock()
	x := m.nextXid
	m.nextXid++
	m.trueInFlight[x] = struct{}{}
	allocSnap := m.snapshotLocked()

	// The snapshot returned here is projected as of this transaction's own
	// commit: everything currently in flight or aborted except x itself,
	// so a zookie encoding it makes x's writes visible even though x has
	// not actually committed yet.
	special := make([]xid.Xid, 0, len(m.trueInFlight)+len(m.aborted))
	xmin := m.nextXid
	for other := range m.trueInFlight {
		if other == x {
			continue
		}
		special = append(special, other)
		if other < xmin {
			xmin = other
		}
	}
	for other := range m.aborted {
		special = append(special, other)
		if other < xmin {
			xmin = other
		}
	}
	commitSnap := snapshot.New(xmin, m.nextXid, special)
	m.mu.Unlock()

	t.allocatedXid = x
	t.hasXid = true

	m.RecordTransaction(model.TransactionRecord{
		Xid:         x,
		XminAtAlloc: allocSnap.Xmin,
		XmaxAtAlloc: allocSnap.Xmax,
		InFlight:    allocSnap.InFlight,
		Timestamp:   time.Now().UTC(),
	})

	return x, commitSnap, nil
}

func (t *transaction) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.snapshotLocked(), nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.hasXid {
		return nil
	}
	m := t.store
	m.mu.Lock()
	delete(m.trueInFlight, t.allocatedXid)
	old := m.advanceCh
	m.advanceCh = make(chan struct{})
	m.mu.Unlock()
	close(old)
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.hasXid {
		return nil
	}
	m := t.store
	m.mu.Lock()
	delete(m.trueInFlight, t.allocatedXid)
	m.aborted[t.allocatedXid] = struct{}{}
	m.mu.Unlock()
	return nil
}

// --- storage.GraphTables ---

func (m *MemStore) NextObjectID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObjectID++
	return m.nextObjectID
}

func (m *MemStore) InsertObject(obj *model.Object, meta *model.ObjectMetadataVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects.Insert(obj.ID, obj)
	m.objectMeta[obj.ID] = append(m.objectMeta[obj.ID], meta)
	m.objectCache.Add(obj.ID, obj)
}

func (m *MemStore) GetObject(id int64) (*model.Object, bool) {
	if o, ok := m.objectCache.Get(id); ok {
		return o, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects.Get(id)
	return o, ok
}

func (m *MemStore) ObjectMetadataVersions(objectID int64) []*model.ObjectMetadataVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.ObjectMetadataVersion, len(m.objectMeta[objectID]))
	copy(out, m.objectMeta[objectID])
	return out
}

func (m *MemStore) AppendObjectMetadataVersion(v *model.ObjectMetadataVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectMeta[v.ObjectID] = append(m.objectMeta[v.ObjectID], v)
}

func (m *MemStore) StampObjectDeleted(objectID int64, x xid.Xid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects.Get(objectID); ok {
		o.DeletedXid = x
		m.objectCache.Remove(objectID)
	}
}

// SupersedeLiveObjectMetadata stamps deleted_xid=x on whichever metadata
// version of objectID currently has deleted_xid == xid.Inf.
func (m *MemStore) SupersedeLiveObjectMetadata(objectID int64, x xid.Xid) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.objectMeta[objectID] {
		if v.DeletedXid == xid.Inf {
			v.DeletedXid = x
			return true
		}
	}
	return false
}

func (m *MemStore) NextEdgeID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEdgeID++
	return m.nextEdgeID
}

func (m *MemStore) InsertEdge(e *model.Edge, meta *model.EdgeMetadataVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges.Insert(e.ID, e)
	m.edgeMeta[e.ID] = append(m.edgeMeta[e.ID], meta)
	m.edgesByFrom[e.FromID] = append(m.edgesByFrom[e.FromID], e.ID)
	m.edgesByTo[e.ToID] = append(m.edgesByTo[e.ToID], e.ID)
	m.edgeCache.Add(e.ID, e)
}

func (m *MemStore) GetEdge(id int64) (*model.Edge, bool) {
	if e, ok := m.edgeCache.Get(id); ok {
		return e, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges.Get(id)
	return e, ok
}

func (m *MemStore) EdgeMetadataVersions(edgeID int64) []*model.EdgeMetadataVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.EdgeMetadataVersion, len(m.edgeMeta[edgeID]))
	copy(out, m.edgeMeta[edgeID])
	return out
}

func (m *MemStore) AppendEdgeMetadataVersion(v *model.EdgeMetadataVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edgeMeta[v.EdgeID] = append(m.edgeMeta[v.EdgeID], v)
}

func (m *MemStore) StampEdgeDeleted(edgeID int64, x xid.Xid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.edges.Get(edgeID); ok {
		e.DeletedXid = x
		m.edgeCache.Remove(edgeID)
	}
}

func (m *MemStore) SupersedeLiveEdgeMetadata(edgeID int64, x xid.Xid) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.edgeMeta[edgeID] {
		if v.DeletedXid == xid.Inf {
			v.DeletedXid = x
			return true
		}
	}
	return false
}

func (m *MemStore) EdgesFrom(objectID int64) []*model.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.edgesByFrom[objectID]
	out := make([]*model.Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.edges.Get(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemStore) EdgesTo(objectID int64) []*model.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.edgesByTo[objectID]
	out := make([]*model.Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.edges.Get(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemStore) NextSchemaID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSchemaID++
	return m.nextSchemaID
}

func (m *MemStore) InsertSchema(rec *model.SchemaRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemasByType[rec.TypeName] = rec
}

func (m *MemStore) GetSchemaByType(typeName string) (*model.SchemaRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.schemasByType[typeName]
	return rec, ok
}

func (m *MemStore) RecordTransaction(rec model.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txRecords.Insert(int64(rec.Xid), rec)
}

// TransactionNear returns the transaction record with the largest
// timestamp not after t, groundwork for resolving an after(timestamp)
// consistency request to a concrete xid.
func (m *MemStore) TransactionNear(t time.Time) (model.TransactionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best model.TransactionRecord
	found := false
	m.txRecords.Range(func(_ int64, rec model.TransactionRecord) bool {
		if !rec.Timestamp.After(t) {
			best = rec
			found = true
		}
		return true
	})
	return best, found
}

// WaitForAdvance exposes the commit-broadcast wait used by the
// consistency resolver's at_least_as_fresh handling.
func (m *MemStore) WaitForAdvance(ctx context.Context) error {
	return m.waitForAdvance(ctx)
}

var _ storage.Backend = (*MemStore)(nil)
var _ storage.GraphTables = (*MemStore)(nil)
var _ storage.Advancer = (*MemStore)(nil)
