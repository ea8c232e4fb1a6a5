package objectstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/objectstore"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/storage/memstore"
	"github.com/vertexdb/vertexdb/internal/xid"
	"github.com/vertexdb/vertexdb/internal/zookie"
)

const personSchema = `{"type": "object", "properties": {"name": {"type": "string"}}, "required": ["name"]}`

func newStore(t *testing.T) (*objectstore.Store, *schema.Registry, *oracle.Oracle) {
	t.Helper()
	store := memstore.New(64, zap.NewNop())
	pool := storage.NewPool(16)
	codec := zookie.NewCodec([]byte("test-secret"))
	oc := oracle.New(store, store, store, pool, codec)
	schemas := schema.New(store)
	return objectstore.New(oc, schemas), schemas, oc
}

func TestObjectStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, commitSnap, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "Person", obj.Type)

	got, meta, err := objects.GetObject(ctx, obj.ID, commitSnap)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, got.ID)
	assert.JSONEq(t, `{"name": "alice"}`, meta.MetadataJSON)
}

func TestObjectStore_CommitSnapshotMakesTheWriteVisible(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, commitSnap, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	assert.True(t, commitSnap.RowVisible(obj.CreatedXid, xid.Inf),
		"the snapshot returned alongside a write must make that write visible")
}

func TestObjectStore_CreateObject_UnregisteredType(t *testing.T) {
	ctx := context.Background()
	objects, _, _ := newStore(t)

	_, _, err := objects.CreateObject(ctx, "user-1", "Ghost", `{}`)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeNotFound, ge.Code)
}

func TestObjectStore_CreateObject_ValidationFailed(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	_, _, err = objects.CreateObject(ctx, "user-1", "Person", `{}`)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeValidationFailed, ge.Code)
}

func TestObjectStore_GetObject_NotFound(t *testing.T) {
	ctx := context.Background()
	objects, _, oc := newStore(t)

	snap, err := oc.CurrentSnapshot(ctx)
	require.NoError(t, err)

	_, _, err = objects.GetObject(ctx, 999, snap)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeNotFound, ge.Code)
}

func TestObjectStore_UpdateObject(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, _, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	_, commitSnap, err := objects.UpdateObject(ctx, obj.ID, `{"name": "alicia"}`)
	require.NoError(t, err)

	_, meta, err := objects.GetObject(ctx, obj.ID, commitSnap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "alicia"}`, meta.MetadataJSON)
}

func TestObjectStore_UpdateObject_RevalidatesAgainstSchema(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, _, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	_, _, err = objects.UpdateObject(ctx, obj.ID, `{}`)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeValidationFailed, ge.Code)
}

func TestObjectStore_DeleteObject(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, _, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	commitSnap, err := objects.DeleteObject(ctx, obj.ID)
	require.NoError(t, err)

	_, _, err = objects.GetObject(ctx, obj.ID, commitSnap)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeNotFound, ge.Code)
}

func TestObjectStore_DeleteObject_AlreadyDeleted(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, _, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	_, err = objects.DeleteObject(ctx, obj.ID)
	require.NoError(t, err)

	_, err = objects.DeleteObject(ctx, obj.ID)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeNotFound, ge.Code)
}

func TestObjectStore_PastSnapshotStillSeesOldVersion(t *testing.T) {
	ctx := context.Background()
	objects, schemas, _ := newStore(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	obj, firstSnap, err := objects.CreateObject(ctx, "user-1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	_, _, err = objects.UpdateObject(ctx, obj.ID, `{"name": "alicia"}`)
	require.NoError(t, err)

	_, meta, err := objects.GetObject(ctx, obj.ID, firstSnap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "alice"}`, meta.MetadataJSON)
}
