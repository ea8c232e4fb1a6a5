// Package schema implements the per-type JSON Schema registry (C3):
// registration, structural validation of registered schemata, and
// validation of object metadata against them.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/model"
	"github.com/vertexdb/vertexdb/internal/storage"
)

var typeNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type cachedSchema struct {
	schemaID  int64
	canonical string
	validator *gojsonschema.Schema
}

// Registry is the process-wide schema cache; a successful CreateSchema
// stores the new entry. Reads take the shared side of the reader-writer
// guard; writes take the exclusive side.
type Registry struct {
	tables storage.GraphTables

	mu    sync.RWMutex
	cache map[string]*cachedSchema
}

// New builds a Registry over the given backend tables.
func New(tables storage.GraphTables) *Registry {
	return &Registry{tables: tables, cache: make(map[string]*cachedSchema)}
}

// CreateSchema registers a JSON Schema draft-7 document for type_name.
// A second call with byte-identical (canonicalized) JSON is idempotent
// and returns the existing schema id; a call with different JSON for an
// already-registered type_name fails with SCHEMA_CONFLICT.
func (r *Registry) CreateSchema(typeName, schemaJSON, description string) (int64, error) {
	if !typeNameRe.MatchString(typeName) {
		return 0, apierrors.InvalidArgument(fmt.Sprintf("type_name %q does not match ^[A-Za-z_][A-Za-z0-9_]*$", typeName))
	}

	canonical, err := canonicalizeJSON(schemaJSON)
	if err != nil {
		return 0, apierrors.InvalidArgument(fmt.Sprintf("schema is not valid JSON: %v", err))
	}

	validator, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(canonical))
	if err != nil {
		return 0, apierrors.SchemaUnsupported(fmt.Sprintf("schema is not a supported JSON Schema draft-7 document: %v", err))
	}

	if existing, ok := r.tables.GetSchemaByType(typeName); ok {
		if existing.SchemaJSON == canonical {
			return existing.SchemaID, nil
		}
		return 0, apierrors.SchemaConflict(fmt.Sprintf("type_name %q is already registered with a different schema", typeName))
	}

	id := r.tables.NextSchemaID()
	now := time.Now().UTC()
	rec := &model.SchemaRecord{
		SchemaID:   id,
		TypeName:   typeName,
		SchemaJSON: canonical,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.tables.InsertSchema(rec)

	r.mu.Lock()
	r.cache[typeName] = &cachedSchema{schemaID: id, canonical: canonical, validator: validator}
	r.mu.Unlock()

	return id, nil
}

// Validate checks metadataJSON against the schema registered for
// typeName. It returns NOT_FOUND if typeName has no registered schema
// (Invariant 5), or VALIDATION_FAILED carrying the violation list if the
// document does not conform.
func (r *Registry) Validate(typeName, metadataJSON string) error {
	entry, err := r.lookup(typeName)
	if err != nil {
		return err
	}

	result, err := entry.validator.Validate(gojsonschema.NewStringLoader(metadataJSON))
	if err != nil {
		return apierrors.InvalidArgument(fmt.Sprintf("metadata is not valid JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}

	violations := make([]apierrors.Violation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, apierrors.Violation{
			Path:    "/" + e.Field(),
			Message: e.Description(),
		})
	}
	return apierrors.ValidationFailed(violations)
}

// TypeRegistered reports whether typeName has a registered schema,
// without validating any document against it. Used by object creation
// to satisfy Invariant 5 before allocating an xid.
func (r *Registry) TypeRegistered(typeName string) bool {
	_, err := r.lookup(typeName)
	return err == nil
}

func (r *Registry) lookup(typeName string) (*cachedSchema, error) {
	r.mu.RLock()
	entry, ok := r.cache[typeName]
	r.mu.RUnlock()
	if ok {
		return entry, nil
	}

	rec, ok := r.tables.GetSchemaByType(typeName)
	if !ok {
		return nil, apierrors.NotFound(fmt.Sprintf("no schema registered for type %q", typeName))
	}

	validator, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rec.SchemaJSON))
	if err != nil {
		return nil, apierrors.Internal("previously-accepted schema no longer compiles", err)
	}

	entry = &cachedSchema{schemaID: rec.SchemaID, canonical: rec.SchemaJSON, validator: validator}

	// A negative cache entry is never retained: only a successful
	// backend lookup populates the cache.
	r.mu.Lock()
	r.cache[typeName] = entry
	r.mu.Unlock()

	return entry, nil
}

func canonicalizeJSON(raw string) (string, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
