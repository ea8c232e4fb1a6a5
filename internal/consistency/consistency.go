// Package consistency implements the Consistency Resolver (C6): turning a
// caller's ConsistencyRequirement into a concrete read snapshot.
package consistency

import (
	"context"
	"sync"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/snapshot"
)

// Requirement is a tagged union of the four consistency variants a
// client may request. The zero value of the interface is never valid;
// use the constructors below.
type Requirement interface {
	isRequirement()
}

type fullConsistency struct{}
type atLeastAsFresh struct{ zookie string }
type exactlyAt struct{ zookie string }
type minimizeLatency struct{}

func (fullConsistency) isRequirement()  {}
func (atLeastAsFresh) isRequirement()   {}
func (exactlyAt) isRequirement()        {}
func (minimizeLatency) isRequirement()  {}

func FullConsistency() Requirement            { return fullConsistency{} }
func AtLeastAsFresh(zookie string) Requirement { return atLeastAsFresh{zookie: zookie} }
func ExactlyAt(zookie string) Requirement      { return exactlyAt{zookie: zookie} }
func MinimizeLatency() Requirement            { return minimizeLatency{} }

// Resolver turns a Requirement into a snapshot and the zookie that
// encodes it.
type Resolver struct {
	oracle *oracle.Oracle

	mu           sync.RWMutex
	lastObserved *snapshot.Snapshot
}

// New builds a Resolver over the given oracle.
func New(o *oracle.Oracle) *Resolver {
	return &Resolver{oracle: o}
}

// Observe records snap as the most recent snapshot seen by this process,
// used to answer minimize_latency without a fresh round-trip.
func (r *Resolver) Observe(snap snapshot.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastObserved == nil || snap.Dominates(*r.lastObserved) {
		r.lastObserved = &snap
	}
}

// Result is the resolved snapshot plus the zookie that echoes it back to
// the caller so they can chain further reads.
type Result struct {
	Snapshot snapshot.Snapshot
	Zookie   string
}

// Resolve picks a concrete snapshot for req.
func (r *Resolver) Resolve(ctx context.Context, req Requirement) (Result, error) {
	switch v := req.(type) {
	case fullConsistency:
		snap, err := r.oracle.CurrentSnapshot(ctx)
		if err != nil {
			return Result{}, err
		}
		r.Observe(snap)
		return Result{Snapshot: snap, Zookie: r.oracle.EncodeSnapshot(snap)}, nil

	case minimizeLatency:
		r.mu.RLock()
		last := r.lastObserved
		r.mu.RUnlock()
		if last != nil {
			return Result{Snapshot: *last, Zookie: r.oracle.EncodeSnapshot(*last)}, nil
		}
		snap, err := r.oracle.CurrentSnapshot(ctx)
		if err != nil {
			return Result{}, err
		}
		r.Observe(snap)
		return Result{Snapshot: snap, Zookie: r.oracle.EncodeSnapshot(snap)}, nil

	case exactlyAt:
		snap, err := r.oracle.ResolveZookie(ctx, v.zookie)
		if err != nil {
			return Result{}, err
		}
		return Result{Snapshot: snap, Zookie: v.zookie}, nil

	case atLeastAsFresh:
		target, err := r.oracle.ResolveZookie(ctx, v.zookie)
		if err != nil {
			return Result{}, err
		}
		for {
			current, err := r.oracle.CurrentSnapshot(ctx)
			if err != nil {
				return Result{}, err
			}
			if current.Dominates(target) {
				r.Observe(current)
				return Result{Snapshot: current, Zookie: r.oracle.EncodeSnapshot(current)}, nil
			}
			if err := r.oracle.WaitForAdvance(ctx); err != nil {
				return Result{}, apierrors.StaleUnavailable("deadline exceeded waiting for a snapshot at least as fresh as the requested zookie")
			}
		}

	default:
		return Result{}, apierrors.InvalidArgument("unrecognized consistency requirement")
	}
}
