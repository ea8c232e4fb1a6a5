package consistency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/consistency"
	"github.com/vertexdb/vertexdb/internal/objectstore"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/storage/memstore"
	"github.com/vertexdb/vertexdb/internal/zookie"
)

const personSchema = `{"type": "object", "properties": {"name": {"type": "string"}}, "required": ["name"]}`

func newHarness(t *testing.T) (*consistency.Resolver, *oracle.Oracle, *objectstore.Store, *schema.Registry) {
	t.Helper()
	store := memstore.New(64, zap.NewNop())
	pool := storage.NewPool(16)
	codec := zookie.NewCodec([]byte("test-secret"))
	oc := oracle.New(store, store, store, pool, codec)
	schemas := schema.New(store)
	objects := objectstore.New(oc, schemas)
	resolver := consistency.New(oc)
	return resolver, oc, objects, schemas
}

func TestResolver_FullConsistency(t *testing.T) {
	ctx := context.Background()
	resolver, _, objects, schemas := newHarness(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)
	_, _, err = objects.CreateObject(ctx, "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	res, err := resolver.Resolve(ctx, consistency.FullConsistency())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Zookie)
}

func TestResolver_MinimizeLatency_UsesLastObservedWithoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	resolver, oc, objects, schemas := newHarness(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)
	_, commitSnap, err := objects.CreateObject(ctx, "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)
	resolver.Observe(commitSnap)

	res, err := resolver.Resolve(ctx, consistency.MinimizeLatency())
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Equal(commitSnap))
	_ = oc
}

func TestResolver_ExactlyAt(t *testing.T) {
	ctx := context.Background()
	resolver, oc, objects, schemas := newHarness(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)
	_, commitSnap, err := objects.CreateObject(ctx, "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)
	token := oc.EncodeSnapshot(commitSnap)

	res, err := resolver.Resolve(ctx, consistency.ExactlyAt(token))
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Equal(commitSnap))
	assert.Equal(t, token, res.Zookie)
}

func TestResolver_ExactlyAt_InvalidZookie(t *testing.T) {
	ctx := context.Background()
	resolver, _, _, _ := newHarness(t)

	_, err := resolver.Resolve(ctx, consistency.ExactlyAt("not-a-real-token"))
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvalidZookie, ge.Code)
}

func TestResolver_AtLeastAsFresh_AlreadySatisfied(t *testing.T) {
	ctx := context.Background()
	resolver, oc, objects, schemas := newHarness(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)
	_, commitSnap, err := objects.CreateObject(ctx, "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)
	token := oc.EncodeSnapshot(commitSnap)

	res, err := resolver.Resolve(ctx, consistency.AtLeastAsFresh(token))
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Dominates(commitSnap))
}

func TestResolver_AtLeastAsFresh_BlocksUntilTargetArrivesThenSucceeds(t *testing.T) {
	resolver, oc, objects, schemas := newHarness(t)
	ctx := context.Background()

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)

	// Reserve a zookie for a write that hasn't happened yet by allocating
	// it concurrently, just after Resolve starts waiting.
	var wg sync.WaitGroup
	wg.Add(1)

	errCh := make(chan error, 1)

	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		_, _, err := objects.CreateObject(ctx, "u1", "Person", `{"name": "bob"}`)
		if err != nil {
			errCh <- err
		}
	}()

	_, commitSnap, err := objects.CreateObject(ctx, "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)
	// A future snapshot: advance xmax beyond what's committed yet by
	// asking to be at least as fresh as a snapshot one xid ahead.
	ahead := commitSnap
	ahead.Xmax++
	futureToken := oc.EncodeSnapshot(ahead)

	futureSnap, err := oc.CurrentSnapshot(ctx)
	require.NoError(t, err)
	_ = futureSnap

	res, err := resolver.Resolve(ctx, consistency.AtLeastAsFresh(futureToken))
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Dominates(ahead))

	wg.Wait()
	select {
	case err := <-errCh:
		t.Fatalf("background create failed: %v", err)
	default:
	}
}

func TestResolver_AtLeastAsFresh_TimesOut(t *testing.T) {
	resolver, oc, objects, schemas := newHarness(t)

	_, err := schemas.CreateSchema("Person", personSchema, "")
	require.NoError(t, err)
	_, commitSnap, err := objects.CreateObject(context.Background(), "u1", "Person", `{"name": "alice"}`)
	require.NoError(t, err)

	// Forge a token for a snapshot strictly ahead of anything committed,
	// by bumping xmax past the oracle's current allocation point.
	ahead := commitSnap
	ahead.Xmax += 1000
	token := oc.EncodeSnapshot(ahead)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = resolver.Resolve(ctx, consistency.AtLeastAsFresh(token))
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeStaleUnavailable, ge.Code)
}
