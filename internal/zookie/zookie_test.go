package zookie_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/xid"
	"github.com/vertexdb/vertexdb/internal/zookie"
)

func TestCodec_SnapshotRoundTrip(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))
	snap := snapshot.New(5, 12, []xid.Xid{7, 9, 11})

	token := codec.EncodeSnapshot(snap)
	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	assert.False(t, decoded.HasXid)
	assert.True(t, decoded.Snapshot.Equal(snap))
}

func TestCodec_XidRoundTrip(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))

	token := codec.EncodeXid(255)
	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	assert.True(t, decoded.HasXid)
	assert.Equal(t, xid.Xid(255), decoded.AtXid)
}

func TestCodec_XidVariantNeverMisreadAsSnapshot(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))

	// xid values whose low byte would collide with a stray marker byte
	// under a shared-tag encoding must still decode as the xid variant.
	for _, x := range []xid.Xid{0, 127, 128, 255, 65407, 1 << 20} {
		token := codec.EncodeXid(x)
		decoded, err := codec.Decode(token)
		require.NoError(t, err)
		assert.True(t, decoded.HasXid)
		assert.Equal(t, x, decoded.AtXid)
	}
}

func TestCodec_SnapshotWithBoundaryXminNeverMisreadAsXid(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))

	// xmin values whose varint-encoded first byte would equal a stray
	// marker byte under a shared-tag encoding must still decode as the
	// snapshot variant with the original fields intact.
	for _, xmin := range []xid.Xid{127, 255, 65407} {
		snap := snapshot.New(xmin, xmin+100, nil)
		token := codec.EncodeSnapshot(snap)
		decoded, err := codec.Decode(token)
		require.NoError(t, err)
		assert.False(t, decoded.HasXid)
		assert.Equal(t, xmin, decoded.Snapshot.Xmin)
	}
}

func TestCodec_TamperedTokenRejected(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))
	token := codec.EncodeSnapshot(snapshot.New(1, 2, nil))

	lastChar := "A"
	if token[len(token)-1] == 'A' {
		lastChar = "B"
	}
	tampered := token[:len(token)-1] + lastChar
	_, err := codec.Decode(tampered)
	require.Error(t, err)

	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeInvalidZookie, ge.Code)
}

func TestCodec_WrongSecretRejected(t *testing.T) {
	codec := zookie.NewCodec([]byte("secret-a"))
	other := zookie.NewCodec([]byte("secret-b"))

	token := codec.EncodeSnapshot(snapshot.New(1, 2, nil))
	_, err := other.Decode(token)
	require.Error(t, err)
}

func TestCodec_GarbageTokenRejected(t *testing.T) {
	codec := zookie.NewCodec([]byte("test-secret"))

	_, err := codec.Decode("not-base64-!!!")
	require.Error(t, err)

	_, err = codec.Decode("")
	require.Error(t, err)
}
