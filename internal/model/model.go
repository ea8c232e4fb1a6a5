// Package model holds the versioned row types shared by the schema
// registry, object store, and edge store.
package model

import (
	"time"

	"github.com/vertexdb/vertexdb/internal/xid"
)

// SchemaRecord is a registered per-type JSON Schema document.
type SchemaRecord struct {
	SchemaID   int64
	TypeName   string
	SchemaJSON string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Object is a typed node. Its metadata lives in a separate chain of
// ObjectMetadataVersion rows; Object itself never changes once created,
// except for DeletedXid being stamped on delete.
type Object struct {
	ID         int64
	UserID     string
	Type       string
	CreatedXid xid.Xid
	DeletedXid xid.Xid
}

// ObjectMetadataVersion is one version of an object's JSON metadata.
type ObjectMetadataVersion struct {
	ObjectID     int64
	MetadataJSON string
	CreatedXid   xid.Xid
	DeletedXid   xid.Xid
}

// Edge is a directed, relation-labelled triple (from, relation, to).
type Edge struct {
	ID         int64
	UserID     string
	FromType   string
	FromID     int64
	Relation   string
	ToType     string
	ToID       int64
	CreatedXid xid.Xid
	DeletedXid xid.Xid
}

// EdgeMetadataVersion is one version of an edge's JSON metadata.
type EdgeMetadataVersion struct {
	EdgeID       int64
	MetadataJSON string
	CreatedXid   xid.Xid
	DeletedXid   xid.Xid
}

// TransactionRecord is persisted at every xid allocation so historic
// zookies remain resolvable and wall-clock timestamps can later be mapped
// to xids.
type TransactionRecord struct {
	Xid       xid.Xid
	XminAtAlloc xid.Xid
	XmaxAtAlloc xid.Xid
	InFlight  []xid.Xid
	Timestamp time.Time
}
