// Package snapshot implements the MVCC visibility predicate used to give
// every read a consistent point-in-time view of the graph.
package snapshot

import (
	"sort"

	"github.com/vertexdb/vertexdb/internal/xid"
)

// Snapshot is the set-theoretic description of which transaction ids are
// visible: xid is visible iff xid < Xmax and xid is not in the in-flight
// set and xid >= Xmin is not required beyond Xmax/InFlight since rows
// created before the oldest retained xid are always visible. Snapshot
// values are immutable once constructed.
type Snapshot struct {
	Xmin     xid.Xid
	Xmax     xid.Xid
	InFlight []xid.Xid
}

// New builds a snapshot, defensively copying and sorting the in-flight set
// so Visible can binary search it.
func New(xmin, xmax xid.Xid, inFlight []xid.Xid) Snapshot {
	cp := make([]xid.Xid, len(inFlight))
	copy(cp, inFlight)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return Snapshot{Xmin: xmin, Xmax: xmax, InFlight: cp}
}

// Visible reports whether x is visible under s.
func (s Snapshot) Visible(x xid.Xid) bool {
	if x >= s.Xmax {
		return false
	}
	if x < s.Xmin {
		return true
	}
	i := sort.Search(len(s.InFlight), func(i int) bool { return s.InFlight[i] >= x })
	if i < len(s.InFlight) && s.InFlight[i] == x {
		return false
	}
	return true
}

// RowVisible applies the standard MVCC predicate for a versioned row:
// created_xid <= snapshot AND (deleted_xid > snapshot effectively, i.e. not visible).
func (s Snapshot) RowVisible(createdXid, deletedXid xid.Xid) bool {
	if !s.Visible(createdXid) {
		return false
	}
	if deletedXid == xid.Inf {
		return true
	}
	return !s.Visible(deletedXid)
}

// Dominates reports whether s is at least as fresh as other: every xid
// visible under other is visible under s.
func (s Snapshot) Dominates(other Snapshot) bool {
	if s.Xmax < other.Xmax {
		return false
	}
	// Below other.Xmax, s hides only its own in-flight xids at or above
	// its Xmin; each of those must be hidden under other as well.
	for _, x := range s.InFlight {
		if x >= s.Xmin && other.Visible(x) {
			return false
		}
	}
	return true
}

// Equal reports structural equality, used by tests.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Xmin != other.Xmin || s.Xmax != other.Xmax || len(s.InFlight) != len(other.InFlight) {
		return false
	}
	for i := range s.InFlight {
		if s.InFlight[i] != other.InFlight[i] {
			return false
		}
	}
	return true
}
