// Package xid defines the transaction id type shared by every versioned
// row in the storage layer.
package xid

// Xid is a server-assigned, monotonically increasing transaction identifier.
// The oracle hands one out at every write; readers compare xids against a
// snapshot to decide what is visible.
type Xid uint64

// Inf is the sentinel deleted_xid value meaning "not yet deleted". It is
// 2^63-1, matching the xid8 domain used by native-relational backends.
const Inf Xid = (1 << 63) - 1

// Zero is never a valid allocated xid; it is used as an uninitialized marker.
const Zero Xid = 0

// Less reports whether x precedes y in allocation order.
func Less(x, y Xid) bool { return x < y }
