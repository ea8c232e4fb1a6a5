// Package graphapi implements the Graph API (C7): the externally visible
// operations composing the schema registry, object store, edge store,
// and consistency resolver.
package graphapi

import (
	"context"

	"github.com/vertexdb/vertexdb/internal/consistency"
	"github.com/vertexdb/vertexdb/internal/edgestore"
	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/objectstore"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
)

// Service is the thin composition layer every transport handler calls
// into. Every mutating method attaches a zookie encoding the write's
// commit snapshot; every read resolves its snapshot through the
// consistency resolver first.
type Service struct {
	oracle    *oracle.Oracle
	schemas   *schema.Registry
	resolver  *consistency.Resolver
	objects   *objectstore.Store
	edges     *edgestore.Store
}

// New wires the Graph API over its component stores.
func New(o *oracle.Oracle, schemas *schema.Registry, resolver *consistency.Resolver, objects *objectstore.Store, edges *edgestore.Store) *Service {
	return &Service{oracle: o, schemas: schemas, resolver: resolver, objects: objects, edges: edges}
}

// CreateSchema registers a new type. Not gated by consistency: schema
// registration is not a versioned graph row.
func (s *Service) CreateSchema(ctx context.Context, typeName, schemaJSON, description string) (int64, error) {
	return s.schemas.CreateSchema(typeName, schemaJSON, description)
}

// GetObject resolves req to a snapshot and returns the object visible there.
func (s *Service) GetObject(ctx context.Context, objectID int64, req consistency.Requirement) (*model.Object, *model.ObjectMetadataVersion, string, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, nil, "", err
	}
	obj, meta, err := s.objects.GetObject(ctx, objectID, res.Snapshot)
	if err != nil {
		return nil, nil, "", err
	}
	return obj, meta, res.Zookie, nil
}

// CreateObject validates and inserts a new object, returning its zookie.
func (s *Service) CreateObject(ctx context.Context, userID, typeName, metadataJSON string) (*model.Object, string, error) {
	obj, commitSnap, err := s.objects.CreateObject(ctx, userID, typeName, metadataJSON)
	if err != nil {
		return nil, "", err
	}
	s.resolver.Observe(commitSnap)
	return obj, s.oracle.EncodeSnapshot(commitSnap), nil
}

// UpdateObject supersedes the live metadata version, returning the new zookie.
func (s *Service) UpdateObject(ctx context.Context, objectID int64, newMetadataJSON string) (*model.Object, string, error) {
	obj, commitSnap, err := s.objects.UpdateObject(ctx, objectID, newMetadataJSON)
	if err != nil {
		return nil, "", err
	}
	s.resolver.Observe(commitSnap)
	return obj, s.oracle.EncodeSnapshot(commitSnap), nil
}

// DeleteObject tombstones the object and cascades to its live edges.
func (s *Service) DeleteObject(ctx context.Context, objectID int64) (string, error) {
	commitSnap, err := s.objects.DeleteObject(ctx, objectID)
	if err != nil {
		return "", err
	}
	s.resolver.Observe(commitSnap)
	return s.oracle.EncodeSnapshot(commitSnap), nil
}

// GetEdge resolves req to a snapshot and returns the smallest-id live
// edge from objectID via relation, plus its target object and the
// target's visible metadata.
func (s *Service) GetEdge(ctx context.Context, objectID int64, relation string, req consistency.Requirement) (*model.Edge, *edgestore.TargetObject, string, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, nil, "", err
	}
	edge, target, err := s.edges.GetEdge(ctx, objectID, relation, res.Snapshot)
	if err != nil {
		return nil, nil, "", err
	}
	return edge, target, res.Zookie, nil
}

// GetEdges resolves req to a snapshot and returns every target reachable
// in one hop via relation, each with its visible metadata, in ascending
// edge id order.
func (s *Service) GetEdges(ctx context.Context, objectID int64, relation string, req consistency.Requirement) ([]*edgestore.TargetObject, string, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, "", err
	}
	targets, err := s.edges.GetEdges(ctx, objectID, relation, res.Snapshot)
	if err != nil {
		return nil, "", err
	}
	return targets, res.Zookie, nil
}

// CreateEdge inserts a new edge after resolving and type-checking its
// endpoints and running the DAG cycle check.
func (s *Service) CreateEdge(ctx context.Context, userID, fromType string, fromID int64, relation, toType string, toID int64, metadataJSON string) (*model.Edge, string, error) {
	edge, commitSnap, err := s.edges.CreateEdge(ctx, userID, fromType, fromID, relation, toType, toID, metadataJSON)
	if err != nil {
		return nil, "", err
	}
	s.resolver.Observe(commitSnap)
	return edge, s.oracle.EncodeSnapshot(commitSnap), nil
}

// UpdateEdge re-validates both endpoint types and supersedes the live
// metadata version.
func (s *Service) UpdateEdge(ctx context.Context, edgeID int64, newMetadataJSON string) (*model.Edge, string, error) {
	edge, commitSnap, err := s.edges.UpdateEdge(ctx, edgeID, newMetadataJSON)
	if err != nil {
		return nil, "", err
	}
	s.resolver.Observe(commitSnap)
	return edge, s.oracle.EncodeSnapshot(commitSnap), nil
}

// DeleteEdge tombstones the edge.
func (s *Service) DeleteEdge(ctx context.Context, edgeID int64) (string, error) {
	commitSnap, err := s.edges.DeleteEdge(ctx, edgeID)
	if err != nil {
		return "", err
	}
	s.resolver.Observe(commitSnap)
	return s.oracle.EncodeSnapshot(commitSnap), nil
}
