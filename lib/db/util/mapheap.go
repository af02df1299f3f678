// Package util
//
// This file provides a keyed priority queue used by the expire and future
// schedulers.
//
// The implementation combines a binary min-heap with a hash map, so entries
// can be ordered by their trigger time and still be found, replaced or removed
// by key:
//
//   - O(log n) for priority operations (Upsert, PopMin, RemoveByKey)
//   - O(1) for key-based lookups and existence checks
//   - Entries with equal priority are popped in insertion order
//
// The MapHeap is not thread-safe. Callers must synchronize access themselves.
//
// Example usage:
//
//	timers := NewMapHeap[string, []byte]()
//	timers.Upsert("session:1", deadline, nil)
//
//	// Process everything that is due
//	for {
//	    next, ok := timers.Peek()
//	    if !ok || next.Priority >= now {
//	        break
//	    }
//	    timers.PopMin()
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is a single entry of a MapHeap
type Item[K comparable, V any] struct {
	Key      K     // Unique identifier of the item
	Priority int64 // Lower values are popped first
	Value    V     // Payload carried with the item

	seq   uint64 // Insertion order, breaks priority ties
	index int    // Index in the heap, maintained by the heap package
}

func (i *Item[K, V]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// itemHeap implements heap.Interface. It is kept separate from MapHeap so the
// heap methods do not leak into the MapHeap API.
type itemHeap[K comparable, V any] struct {
	items    []*Item[K, V]
	itemsMap map[K]*Item[K, V]
}

func (h *itemHeap[K, V]) Len() int { return len(h.items) }

func (h *itemHeap[K, V]) Less(i, j int) bool {
	if h.items[i].Priority == h.items[j].Priority {
		return h.items[i].seq < h.items[j].seq
	}
	return h.items[i].Priority < h.items[j].Priority
}

func (h *itemHeap[K, V]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *itemHeap[K, V]) Push(x interface{}) {
	it := x.(*Item[K, V])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.Key] = it
}

func (h *itemHeap[K, V]) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, it.Key)
	return it
}

// MapHeap is a min-heap of items that also supports access by key
type MapHeap[K comparable, V any] struct {
	h   itemHeap[K, V]
	seq uint64
}

// NewMapHeap creates a new empty MapHeap
func NewMapHeap[K comparable, V any]() *MapHeap[K, V] {
	return &MapHeap[K, V]{
		h: itemHeap[K, V]{
			items:    make([]*Item[K, V], 0),
			itemsMap: make(map[K]*Item[K, V]),
		},
	}
}

// Len returns the number of items in the heap
func (mh *MapHeap[K, V]) Len() int { return mh.h.Len() }

// Upsert adds a new item or replaces priority and value of an existing one.
// It returns true if an existing item was replaced.
func (mh *MapHeap[K, V]) Upsert(key K, priority int64, value V) (replaced bool) {
	mh.seq++

	if it, exists := mh.h.itemsMap[key]; exists {
		it.Priority = priority
		it.Value = value
		it.seq = mh.seq
		heap.Fix(&mh.h, it.index)
		return true
	}

	heap.Push(&mh.h, &Item[K, V]{
		Key:      key,
		Priority: priority,
		Value:    value,
		seq:      mh.seq,
	})
	return false
}

// RemoveByKey removes an item by its key and returns it
func (mh *MapHeap[K, V]) RemoveByKey(key K) (*Item[K, V], bool) {
	it, exists := mh.h.itemsMap[key]
	if !exists {
		return nil, false
	}
	heap.Remove(&mh.h, it.index)
	return it, true
}

// RemoveIf removes every item for which fn returns true and returns the number of removed items
func (mh *MapHeap[K, V]) RemoveIf(fn func(it *Item[K, V]) bool) int {
	kept := mh.h.items[:0]
	removed := 0
	for _, it := range mh.h.items {
		if fn(it) {
			delete(mh.h.itemsMap, it.Key)
			it.index = -1
			removed++
			continue
		}
		it.index = len(kept)
		kept = append(kept, it)
	}
	for i := len(kept); i < len(mh.h.items); i++ {
		mh.h.items[i] = nil
	}
	mh.h.items = kept
	if removed > 0 {
		heap.Init(&mh.h)
	}
	return removed
}

// Peek returns the item with the lowest priority without removing it
func (mh *MapHeap[K, V]) Peek() (*Item[K, V], bool) {
	if len(mh.h.items) == 0 {
		return nil, false
	}
	return mh.h.items[0], true
}

// PopMin removes and returns the item with the lowest priority
func (mh *MapHeap[K, V]) PopMin() (*Item[K, V], bool) {
	if len(mh.h.items) == 0 {
		return nil, false
	}
	return heap.Pop(&mh.h).(*Item[K, V]), true
}

// Contains checks if a key exists in the heap
func (mh *MapHeap[K, V]) Contains(key K) bool {
	_, exists := mh.h.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K, V]) GetByKey(key K) (*Item[K, V], bool) {
	it, exists := mh.h.itemsMap[key]
	return it, exists
}

// Range calls fn for every item in unspecified order until fn returns false.
// fn must not modify the heap.
func (mh *MapHeap[K, V]) Range(fn func(it *Item[K, V]) bool) {
	for _, it := range mh.h.items {
		if !fn(it) {
			return
		}
	}
}

// Clear removes all items
func (mh *MapHeap[K, V]) Clear() {
	mh.h.items = make([]*Item[K, V], 0)
	mh.h.itemsMap = make(map[K]*Item[K, V])
}
