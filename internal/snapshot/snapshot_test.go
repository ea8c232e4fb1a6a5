package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/xid"
)

func TestSnapshot_Visible(t *testing.T) {
	s := snapshot.New(10, 20, []xid.Xid{12, 15})

	tests := []struct {
		name string
		x    xid.Xid
		want bool
	}{
		{"below xmin always visible", 5, true},
		{"at or above xmax never visible", 20, false},
		{"above xmax never visible", 25, false},
		{"in range, not in-flight, visible", 13, true},
		{"in range, in-flight, not visible", 12, false},
		{"in range, in-flight, not visible (second)", 15, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Visible(tt.x))
		})
	}
}

func TestSnapshot_RowVisible(t *testing.T) {
	s := snapshot.New(10, 20, []xid.Xid{15})

	// created and never deleted: visible.
	assert.True(t, s.RowVisible(11, xid.Inf))

	// created but not yet visible (in-flight creator): not visible.
	assert.False(t, s.RowVisible(15, xid.Inf))

	// created earlier, deleted by a transaction not visible to s: still visible.
	assert.True(t, s.RowVisible(11, 15))

	// created earlier, deleted by a transaction visible to s: not visible.
	assert.False(t, s.RowVisible(11, 12))
}

func TestSnapshot_Dominates(t *testing.T) {
	older := snapshot.New(0, 5, nil)
	newer := snapshot.New(0, 10, nil)

	assert.True(t, newer.Dominates(older))
	assert.False(t, older.Dominates(newer))
	assert.True(t, newer.Dominates(newer))
}

func TestSnapshot_Equal(t *testing.T) {
	a := snapshot.New(1, 5, []xid.Xid{3, 2})
	b := snapshot.New(1, 5, []xid.Xid{2, 3})
	c := snapshot.New(1, 6, []xid.Xid{2, 3})

	assert.True(t, a.Equal(b), "in-flight set should be compared in sorted order")
	assert.False(t, a.Equal(c))
}

func TestSnapshot_NewDefensivelyCopiesInFlight(t *testing.T) {
	inFlight := []xid.Xid{3, 1, 2}
	s := snapshot.New(0, 10, inFlight)

	inFlight[0] = 99
	assert.False(t, s.Visible(1))
	assert.False(t, s.Visible(3))
}
