// Package edgestore implements the Edge Store (C5): MVCC-versioned
// directed triples with metadata history, enforcing the DAG invariant.
package edgestore

import (
	"context"
	"fmt"
	"sort"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/objectstore"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/storage/bloom"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// Store is the C5 Edge Store.
type Store struct {
	oracle  *oracle.Oracle
	schemas *schema.Registry
	objects *objectstore.Store
}

// New builds a Store over the given oracle, schema registry, and object store.
func New(o *oracle.Oracle, schemas *schema.Registry, objects *objectstore.Store) *Store {
	return &Store{oracle: o, schemas: schemas, objects: objects}
}

// CreateEdge resolves both endpoints at the current snapshot, checks that
// creating the edge would not close a cycle, and inserts it.
func (s *Store) CreateEdge(ctx context.Context, userID, fromType string, fromID int64, relation, toType string, toID int64, metadataJSON string) (*model.Edge, snapshot.Snapshot, error) {
	txn, err := s.oracle.Begin(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)

	preSnap, err := txn.Snapshot(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	fromObj, _, err := s.objects.GetObject(ctx, fromID, preSnap)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	if fromObj.Type != fromType {
		return nil, snapshot.Snapshot{}, apierrors.TypeMismatch(fmt.Sprintf("object %d has type %q, not %q", fromID, fromObj.Type, fromType))
	}
	toObj, _, err := s.objects.GetObject(ctx, toID, preSnap)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	if toObj.Type != toType {
		return nil, snapshot.Snapshot{}, apierrors.TypeMismatch(fmt.Sprintf("object %d has type %q, not %q", toID, toObj.Type, toType))
	}

	tables := s.oracle.Tables()

	var edge *model.Edge
	var commitSnap snapshot.Snapshot

	atomicErr := tables.Atomically(func() error {
		if wouldCreateCycle(tables, preSnap, toID, fromID) {
			return apierrors.Cycle(fmt.Sprintf("edge %d->%s->%d would close a cycle", fromID, relation, toID))
		}

		x, cs, err := txn.AllocateXid(ctx)
		if err != nil {
			return err
		}
		commitSnap = cs

		edge = &model.Edge{
			ID:         tables.NextEdgeID(),
			UserID:     userID,
			FromType:   fromType,
			FromID:     fromID,
			Relation:   relation,
			ToType:     toType,
			ToID:       toID,
			CreatedXid: x,
			DeletedXid: xid.Inf,
		}
		meta := &model.EdgeMetadataVersion{
			EdgeID:       edge.ID,
			MetadataJSON: metadataJSON,
			CreatedXid:   x,
			DeletedXid:   xid.Inf,
		}
		tables.InsertEdge(edge, meta)
		return nil
	})
	if atomicErr != nil {
		if ge, ok := apierrors.As(atomicErr); ok {
			return nil, snapshot.Snapshot{}, ge
		}
		return nil, snapshot.Snapshot{}, apierrors.Internal("edge creation failed", atomicErr)
	}

	if err := txn.Commit(ctx); err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	return edge, commitSnap, nil
}

// wouldCreateCycle runs a breadth-first search over edges live at snap
// starting from "from", stopping early if it reaches "to". Callers pass
// a new edge's target as from and its source as to, so a hit means the
// new edge would close a cycle. A Bloom filter pre-filters
// the visited check ahead of the authoritative map lookup.
func wouldCreateCycle(tables storage.GraphTables, snap snapshot.Snapshot, from, to int64) bool {
	if from == to {
		return true
	}

	visited := make(map[int64]struct{})
	filter := bloom.New(64, 0.01)
	queue := []int64{from}
	visited[from] = struct{}{}
	filter.Add(from)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range tables.EdgesFrom(current) {
			if !snap.RowVisible(e.CreatedXid, e.DeletedXid) {
				continue
			}
			if e.ToID == to {
				return true
			}
			if filter.MayContain(e.ToID) {
				if _, seen := visited[e.ToID]; seen {
					continue
				}
			}
			visited[e.ToID] = struct{}{}
			filter.Add(e.ToID)
			queue = append(queue, e.ToID)
		}
	}
	return false
}

// TargetObject is the far endpoint of a one-hop traversal: the resolved
// object together with the metadata version visible at the same snapshot
// the edge was read at.
type TargetObject struct {
	Object   *model.Object
	Metadata *model.ObjectMetadataVersion
}

// GetEdge returns the live edge with from_id=objectID and the given
// relation visible at snap, plus its target object. When more than one
// such edge exists, the one with the smallest id is returned.
func (s *Store) GetEdge(ctx context.Context, objectID int64, relation string, snap snapshot.Snapshot) (*model.Edge, *TargetObject, error) {
	tables := s.oracle.Tables()
	var best *model.Edge
	for _, e := range tables.EdgesFrom(objectID) {
		if e.Relation != relation || !snap.RowVisible(e.CreatedXid, e.DeletedXid) {
			continue
		}
		if best == nil || e.ID < best.ID {
			best = e
		}
	}
	if best == nil {
		return nil, nil, apierrors.NotFound(fmt.Sprintf("no live edge from %d via relation %q", objectID, relation))
	}
	obj, meta, err := s.objects.GetObject(ctx, best.ToID, snap)
	if err != nil {
		return nil, nil, err
	}
	return best, &TargetObject{Object: obj, Metadata: meta}, nil
}

// GetEdges returns every target object reachable in one hop via relation,
// each with its visible metadata, in ascending edge id order.
func (s *Store) GetEdges(ctx context.Context, objectID int64, relation string, snap snapshot.Snapshot) ([]*TargetObject, error) {
	tables := s.oracle.Tables()
	live := make([]*model.Edge, 0)
	for _, e := range tables.EdgesFrom(objectID) {
		if e.Relation == relation && snap.RowVisible(e.CreatedXid, e.DeletedXid) {
			live = append(live, e)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	out := make([]*TargetObject, 0, len(live))
	for _, e := range live {
		obj, meta, err := s.objects.GetObject(ctx, e.ToID, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, &TargetObject{Object: obj, Metadata: meta})
	}
	return out, nil
}

// UpdateEdge rechecks that both endpoints are still live with the types
// recorded on the edge and supersedes the live metadata version.
// newMetadataJSON is not validated against any schema.
func (s *Store) UpdateEdge(ctx context.Context, edgeID int64, newMetadataJSON string) (*model.Edge, snapshot.Snapshot, error) {
	tables := s.oracle.Tables()
	edge, ok := tables.GetEdge(edgeID)
	if !ok || edge.DeletedXid != xid.Inf {
		return nil, snapshot.Snapshot{}, apierrors.NotFound(fmt.Sprintf("edge %d not found", edgeID))
	}

	txn, err := s.oracle.Begin(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)

	preSnap, err := txn.Snapshot(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	fromObj, _, err := s.objects.GetObject(ctx, edge.FromID, preSnap)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	if fromObj.Type != edge.FromType {
		return nil, snapshot.Snapshot{}, apierrors.TypeMismatch(fmt.Sprintf("edge %d endpoint %d no longer has type %q", edgeID, edge.FromID, edge.FromType))
	}
	toObj, _, err := s.objects.GetObject(ctx, edge.ToID, preSnap)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	if toObj.Type != edge.ToType {
		return nil, snapshot.Snapshot{}, apierrors.TypeMismatch(fmt.Sprintf("edge %d endpoint %d no longer has type %q", edgeID, edge.ToID, edge.ToType))
	}

	x, commitSnap, err := txn.AllocateXid(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	if !tables.SupersedeLiveEdgeMetadata(edgeID, x) {
		return nil, snapshot.Snapshot{}, apierrors.Internal(fmt.Sprintf("edge %d has no live metadata version to supersede", edgeID), nil)
	}
	tables.AppendEdgeMetadataVersion(&model.EdgeMetadataVersion{
		EdgeID:       edgeID,
		MetadataJSON: newMetadataJSON,
		CreatedXid:   x,
		DeletedXid:   xid.Inf,
	})

	if err := txn.Commit(ctx); err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	return edge, commitSnap, nil
}

// DeleteEdge stamps the edge and its live metadata version deleted.
func (s *Store) DeleteEdge(ctx context.Context, edgeID int64) (snapshot.Snapshot, error) {
	tables := s.oracle.Tables()
	edge, ok := tables.GetEdge(edgeID)
	if !ok || edge.DeletedXid != xid.Inf {
		return snapshot.Snapshot{}, apierrors.NotFound(fmt.Sprintf("edge %d not found", edgeID))
	}

	txn, err := s.oracle.Begin(ctx)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)

	x, commitSnap, err := txn.AllocateXid(ctx)
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	tables.StampEdgeDeleted(edgeID, x)
	tables.SupersedeLiveEdgeMetadata(edgeID, x)

	if err := txn.Commit(ctx); err != nil {
		return snapshot.Snapshot{}, err
	}
	return commitSnap, nil
}
