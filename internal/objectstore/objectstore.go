// Package objectstore implements the Object Store (C4): MVCC-versioned
// object rows with a metadata-version history chain.
package objectstore

import (
	"context"
	"fmt"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// Store is the C4 Object Store.
type Store struct {
	oracle  *oracle.Oracle
	schemas *schema.Registry
}

// New builds a Store over the given oracle and schema registry.
func New(o *oracle.Oracle, schemas *schema.Registry) *Store {
	return &Store{oracle: o, schemas: schemas}
}

// CreateObject validates metadataJSON against typeName's registered
// schema, allocates an xid, and inserts the object row and its first
// metadata version. It fails with NOT_FOUND if typeName has no
// registered schema (Invariant 5) and VALIDATION_FAILED if metadataJSON
// does not satisfy it (Invariant 6).
func (s *Store) CreateObject(ctx context.Context, userID, typeName, metadataJSON string) (*model.Object, snapshot.Snapshot, error) {
	if !s.schemas.TypeRegistered(typeName) {
		return nil, snapshot.Snapshot{}, apierrors.NotFound(fmt.Sprintf("no schema registered for type %q", typeName))
	}
	if err := s.schemas.Validate(typeName, metadataJSON); err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	txn, err := s.oracle.Begin(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)

	x, commitSnap, err := txn.AllocateXid(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	tables := s.oracle.Tables()
	obj := &model.Object{
		ID:         tables.NextObjectID(),
		UserID:     userID,
		Type:       typeName,
		CreatedXid: x,
		DeletedXid: xid.Inf,
	}
	meta := &model.ObjectMetadataVersion{
		ObjectID:     obj.ID,
		MetadataJSON: metadataJSON,
		CreatedXid:   x,
		DeletedXid:   xid.Inf,
	}
	tables.InsertObject(obj, meta)

	if err := txn.Commit(ctx); err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	return obj, commitSnap, nil
}

// GetObject returns the object and its metadata version visible at snap,
// or NOT_FOUND if none is.
func (s *Store) GetObject(ctx context.Context, objectID int64, snap snapshot.Snapshot) (*model.Object, *model.ObjectMetadataVersion, error) {
	tables := s.oracle.Tables()
	obj, ok := tables.GetObject(objectID)
	if !ok || !snap.RowVisible(obj.CreatedXid, obj.DeletedXid) {
		return nil, nil, apierrors.NotFound(fmt.Sprintf("object %d not found", objectID))
	}

	for _, v := range tables.ObjectMetadataVersions(objectID) {
		if snap.RowVisible(v.CreatedXid, v.DeletedXid) {
			return obj, v, nil
		}
	}
	// Invariant 2/6 guarantee a visible object always has a visible
	// metadata version; reaching here means the invariant was broken.
	return nil, nil, apierrors.Internal(fmt.Sprintf("object %d visible with no visible metadata version", objectID), nil)
}

// UpdateObject validates newMetadataJSON against the object's type,
// supersedes the currently-live metadata version, and inserts a new one.
func (s *Store) UpdateObject(ctx context.Context, objectID int64, newMetadataJSON string) (*model.Object, snapshot.Snapshot, error) {
	tables := s.oracle.Tables()
	obj, ok := tables.GetObject(objectID)
	if !ok || obj.DeletedXid != xid.Inf {
		return nil, snapshot.Snapshot{}, apierrors.NotFound(fmt.Sprintf("object %d not found", objectID))
	}

	if err := s.schemas.Validate(obj.Type, newMetadataJSON); err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	txn, err := s.oracle.Begin(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	defer txn.Rollback(ctx)

	x, commitSnap, err := txn.AllocateXid(ctx)
	if err != nil {
		return nil, snapshot.Snapshot{}, err
	}

	if !tables.SupersedeLiveObjectMetadata(objectID, x) {
		return nil, snapshot.Snapshot{}, apierrors.Internal(fmt.Sprintf("object %d has no live metadata version to supersede", objectID), nil)
	}
	tables.AppendObjectMetadataVersion(&model.ObjectMetadataVersion{
		ObjectID:     objectID,
		MetadataJSON: newMetadataJSON,
		CreatedXid:   x,
		DeletedXid:   xid.Inf,
	})

	if err := txn.Commit(ctx); err != nil {
		return nil, snapshot.Snapshot{}, err
	}
	return obj, commitSnap, nil
}

// DeleteObject stamps the object and its live metadata version deleted,
// then cascade-tombstones every edge touching the object that was still
// live, all at the same xid.
func (s *Store) DeleteObject(ctx context.Context, objectID int64) (snapshot.Snapshot, error) {
	tables := s.oracle.Tables()
	obj, ok := tables.GetObject(objectID)
	if !ok || obj.DeletedXid != xid.Inf {
		return snapshot.Snapshot{}, apierrors.NotFound(fmt.Sprintf("object %d not found", objectID))
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

	cascadeErr := tables.Atomically(func() error {
		tables.StampObjectDeleted(objectID, x)
		tables.SupersedeLiveObjectMetadata(objectID, x)

		for _, e := range tables.EdgesFrom(objectID) {
			if e.DeletedXid == xid.Inf {
				tables.StampEdgeDeleted(e.ID, x)
				tables.SupersedeLiveEdgeMetadata(e.ID, x)
			}
		}
		for _, e := range tables.EdgesTo(objectID) {
			if e.DeletedXid == xid.Inf {
				tables.StampEdgeDeleted(e.ID, x)
				tables.SupersedeLiveEdgeMetadata(e.ID, x)
			}
		}
		return nil
	})
	if cascadeErr != nil {
		return snapshot.Snapshot{}, apierrors.Internal("cascade tombstone failed", cascadeErr)
	}

	if err := txn.Commit(ctx); err != nil {
		return snapshot.Snapshot{}, err
	}
	return commitSnap, nil
}
