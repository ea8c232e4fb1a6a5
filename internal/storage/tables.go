package storage

import (
	"time"

	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// GraphTables is the versioned-row access surface every store operation
// (schema registry, object store, edge store) reads and writes through.
// It is implemented by each concrete backend; memstore is the in-process
// implementation shipped with this repository, pgstore is the interface
// target for a native-relational backend.
type GraphTables interface {
	// Atomically runs fn while holding the backend's exclusive write
	// section, so multi-step operations (cycle-check-then-insert,
	// cascade-tombstone) observe a consistent view throughout.
	Atomically(fn func() error) error

	NextObjectID() int64
	InsertObject(obj *model.Object, meta *model.ObjectMetadataVersion)
	GetObject(id int64) (*model.Object, bool)
	ObjectMetadataVersions(objectID int64) []*model.ObjectMetadataVersion
	AppendObjectMetadataVersion(v *model.ObjectMetadataVersion)
	StampObjectDeleted(objectID int64, x xid.Xid)
	SupersedeLiveObjectMetadata(objectID int64, x xid.Xid) bool

	NextEdgeID() int64
	InsertEdge(e *model.Edge, meta *model.EdgeMetadataVersion)
	GetEdge(id int64) (*model.Edge, bool)
	EdgeMetadataVersions(edgeID int64) []*model.EdgeMetadataVersion
	AppendEdgeMetadataVersion(v *model.EdgeMetadataVersion)
	StampEdgeDeleted(edgeID int64, x xid.Xid)
	SupersedeLiveEdgeMetadata(edgeID int64, x xid.Xid) bool
	EdgesFrom(objectID int64) []*model.Edge
	EdgesTo(objectID int64) []*model.Edge

	NextSchemaID() int64
	InsertSchema(rec *model.SchemaRecord)
	GetSchemaByType(typeName string) (*model.SchemaRecord, bool)

	RecordTransaction(rec model.TransactionRecord)
	TransactionNear(t time.Time) (model.TransactionRecord, bool)
}
