// Package bloom provides a probabilistic set membership pre-filter, used
// by the edge store to cheaply rule out most "already visited" checks
// before falling back to the authoritative visited-set lookup during the
// cycle-check breadth-first search.
package bloom

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Filter is a fixed-size Bloom filter over int64 ids.
type Filter struct {
	bits      []bool
	size      uint64
	hashCount uint64
}

// New creates a filter sized for expectedElements ids at the given target
// false-positive rate.
func New(expectedElements int, falsePositiveRate float64) *Filter {
	if expectedElements < 1 {
		expectedElements = 1
	}
	size := uint64(-float64(expectedElements) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	if size < 8 {
		size = 8
	}
	hashCount := uint64(float64(size) / float64(expectedElements) * math.Ln2)
	if hashCount == 0 {
		hashCount = 1
	}
	return &Filter{bits: make([]bool, size), size: size, hashCount: hashCount}
}

func (f *Filter) hashes(id int64) (uint64, uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	h1 := xxhash.Sum64(buf[:])
	h2 := xxhash.Sum64(append(buf[:], 0x5a))
	return h1, h2
}

// Add records id as a member.
func (f *Filter) Add(id int64) {
	h1, h2 := f.hashes(id)
	for i := uint64(0); i < f.hashCount; i++ {
		f.bits[(h1+i*h2)%f.size] = true
	}
}

// MayContain reports whether id might be a member. A false result is
// authoritative; a true result must still be confirmed against the real
// visited set.
func (f *Filter) MayContain(id int64) bool {
	h1, h2 := f.hashes(id)
	for i := uint64(0); i < f.hashCount; i++ {
		if !f.bits[(h1+i*h2)%f.size] {
			return false
		}
	}
	return true
}
