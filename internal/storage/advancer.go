package storage

import "context"

// Advancer is implemented by backends that can wake waiters when the
// current snapshot advances, used by the consistency resolver's
// at_least_as_fresh handling.
type Advancer interface {
	WaitForAdvance(ctx context.Context) error
}
