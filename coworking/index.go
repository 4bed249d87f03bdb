package coworking

import "golang.org/x/exp/constraints"

// DefaultIndexBuckets is prime so sequential ids spread evenly.
const DefaultIndexBuckets = 1009

type indexNode[K constraints.Integer, V any] struct {
	key    K
	target V
	next   *indexNode[K, V]
}

// Index maps integer ids to references using a fixed bucket array with
// separate chaining. It never checks for duplicate keys; the caller enforces
// uniqueness. Not safe for concurrent use.
type Index[K constraints.Integer, V any] struct {
	buckets []*indexNode[K, V]
	size    int
}

// NewIndex allocates an index with n buckets. n < 1 selects DefaultIndexBuckets.
func NewIndex[K constraints.Integer, V any](n int) *Index[K, V] {
	if n < 1 {
		n = DefaultIndexBuckets
	}
	return &Index[K, V]{buckets: make([]*indexNode[K, V], n)}
}

// bucket works in uint64 so narrow key types cannot overflow the modulus.
// Non-negative keys land in key mod buckets; negative keys wrap to a fixed
// bucket of their own.
func (ix *Index[K, V]) bucket(key K) int {
	return int(uint64(key) % uint64(len(ix.buckets)))
}

// Insert prepends key to its bucket chain.
func (ix *Index[K, V]) Insert(key K, target V) {
	b := ix.bucket(key)
	ix.buckets[b] = &indexNode[K, V]{key: key, target: target, next: ix.buckets[b]}
	ix.size++
}

// Lookup returns the most recently inserted target for key.
func (ix *Index[K, V]) Lookup(key K) (V, bool) {
	for n := ix.buckets[ix.bucket(key)]; n != nil; n = n.next {
		if n.key == key {
			return n.target, true
		}
	}
	var zero V
	return zero, false
}

// Remove unlinks the first chain entry for key. Unknown keys are ignored.
func (ix *Index[K, V]) Remove(key K) {
	b := ix.bucket(key)
	var prev *indexNode[K, V]
	for n := ix.buckets[b]; n != nil; n = n.next {
		if n.key == key {
			if prev == nil {
				ix.buckets[b] = n.next
			} else {
				prev.next = n.next
			}
			ix.size--
			return
		}
		prev = n
	}
}

// Len reports the number of entries.
func (ix *Index[K, V]) Len() int { return ix.size }

// Buckets reports the bucket count.
func (ix *Index[K, V]) Buckets() int { return len(ix.buckets) }

// ChainLen reports how many entries share key's bucket.
func (ix *Index[K, V]) ChainLen(key K) int {
	c := 0
	for n := ix.buckets[ix.bucket(key)]; n != nil; n = n.next {
		c++
	}
	return c
}

func (ix *Index[K, V]) reset() {
	clear(ix.buckets)
	ix.size = 0
}
