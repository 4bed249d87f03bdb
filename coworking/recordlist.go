package coworking

import (
	"container/list"
	"iter"
)

// Entry is a stable reference to one record held by a RecordList. The list is
// the only owner; other structures (the identity index) keep *Entry values as
// lookups and never outlive the list's removal path.
type Entry[T any] struct {
	Value T
	elem  *list.Element
	owner *RecordList[T]
}

// RecordList keeps the live records of one entity in insertion order.
// It is not safe for concurrent use; Database guards each list with its lock.
type RecordList[T any] struct {
	l list.List
}

// Append adds v at the tail and returns its entry.
func (r *RecordList[T]) Append(v T) *Entry[T] {
	e := &Entry[T]{Value: v, owner: r}
	e.elem = r.l.PushBack(e)
	return e
}

// All yields entries in insertion order. The sequence may be ranged over any
// number of times.
func (r *RecordList[T]) All() iter.Seq[*Entry[T]] {
	return func(yield func(*Entry[T]) bool) {
		for el := r.l.Front(); el != nil; el = el.Next() {
			if !yield(el.Value.(*Entry[T])) {
				return
			}
		}
	}
}

// Find returns the first entry matching fn by linear scan.
func (r *RecordList[T]) Find(fn func(*T) bool) *Entry[T] {
	for e := range r.All() {
		if fn(&e.Value) {
			return e
		}
	}
	return nil
}

// Remove unlinks e. Entries that belong to another list, or were already
// removed, are left alone and Remove reports false.
func (r *RecordList[T]) Remove(e *Entry[T]) bool {
	if e == nil || e.owner != r || e.elem == nil {
		return false
	}
	r.l.Remove(e.elem)
	e.elem = nil
	e.owner = nil
	return true
}

// Values copies every record in order.
func (r *RecordList[T]) Values() []T {
	out := make([]T, 0, r.l.Len())
	for e := range r.All() {
		out = append(out, e.Value)
	}
	return out
}

// Len reports the number of live records.
func (r *RecordList[T]) Len() int { return r.l.Len() }

// reset drops every record.
func (r *RecordList[T]) reset() {
	for e := range r.All() {
		e.elem = nil
		e.owner = nil
	}
	r.l.Init()
}
