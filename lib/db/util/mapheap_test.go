package util

import (
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string, int]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}
	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if _, ok := mh.Peek(); ok {
		t.Error("Peek() on an empty heap should return false")
	}
	if _, ok := mh.PopMin(); ok {
		t.Error("PopMin() on an empty heap should return false")
	}
}

// TestUpsert tests adding and replacing items
func TestUpsert(t *testing.T) {
	mh := NewMapHeap[string, string]()

	if mh.Upsert("a", 100, "first") {
		t.Error("Upsert of a new key should not report a replacement")
	}
	mh.Upsert("b", 200, "")
	mh.Upsert("c", 50, "")

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	it, _ := mh.Peek()
	if it.Key != "c" || it.Priority != 50 {
		t.Errorf("Expected min item to be (c,50), got (%s,%d)", it.Key, it.Priority)
	}

	// replace a, moving it in front of c
	if !mh.Upsert("a", 10, "second") {
		t.Error("Upsert of an existing key should report a replacement")
	}
	if mh.Len() != 3 {
		t.Errorf("Replacement must not add an item, heap has %d items", mh.Len())
	}

	it, _ = mh.Peek()
	if it.Key != "a" || it.Value != "second" {
		t.Errorf("Expected replaced item a with value 'second', got %v (%q)", it, it.Value)
	}
}

// TestPopOrder tests that items are popped by priority and ties in insertion order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[int, struct{}]()

	mh.Upsert(1, 30, struct{}{})
	mh.Upsert(2, -5, struct{}{})
	mh.Upsert(3, 30, struct{}{})
	mh.Upsert(4, 0, struct{}{})
	mh.Upsert(5, 30, struct{}{})

	expected := []int{2, 4, 1, 3, 5}
	for i, key := range expected {
		it, ok := mh.PopMin()
		if !ok {
			t.Fatalf("PopMin() %d returned nothing", i)
		}
		if it.Key != key {
			t.Errorf("Pop %d: expected key %d, got %d", i, key, it.Key)
		}
		if mh.Contains(it.Key) {
			t.Errorf("Popped key %d must no longer be contained", it.Key)
		}
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[string, int]()
	mh.Upsert("a", 1, 10)
	mh.Upsert("b", 2, 20)
	mh.Upsert("c", 3, 30)

	it, ok := mh.RemoveByKey("a")
	if !ok || it.Value != 10 {
		t.Fatalf("RemoveByKey(a) = %v, %v", it, ok)
	}
	if _, ok := mh.RemoveByKey("a"); ok {
		t.Error("Removing a key twice should fail")
	}

	next, _ := mh.Peek()
	if next.Key != "b" {
		t.Errorf("Expected b to be the new minimum, got %s", next.Key)
	}
}

// TestRemoveIf tests bulk removal
func TestRemoveIf(t *testing.T) {
	mh := NewMapHeap[int, int]()
	for i := 0; i < 100; i++ {
		mh.Upsert(i, int64(100-i), i%2)
	}

	removed := mh.RemoveIf(func(it *Item[int, int]) bool { return it.Value == 1 })
	if removed != 50 {
		t.Errorf("Expected 50 removed items, got %d", removed)
	}
	if mh.Len() != 50 {
		t.Errorf("Expected 50 remaining items, got %d", mh.Len())
	}

	// the heap order must still hold after the removal
	last := int64(-1)
	for mh.Len() > 0 {
		it, _ := mh.PopMin()
		if it.Value != 0 {
			t.Errorf("Item %d should have been removed", it.Key)
		}
		if it.Priority < last {
			t.Errorf("Heap order violated: %d after %d", it.Priority, last)
		}
		last = it.Priority
	}
}

// TestGetByKeyAndClear tests lookups and clearing the heap
func TestGetByKeyAndClear(t *testing.T) {
	mh := NewMapHeap[string, int]()
	mh.Upsert("x", 5, 42)

	it, ok := mh.GetByKey("x")
	if !ok || it.Priority != 5 || it.Value != 42 {
		t.Errorf("GetByKey(x) = %v, %v", it, ok)
	}
	if _, ok := mh.GetByKey("y"); ok {
		t.Error("GetByKey(y) should not find anything")
	}

	mh.Clear()
	if mh.Len() != 0 || mh.Contains("x") {
		t.Error("Clear() should remove all items")
	}
}

// TestRange tests iterating over all items
func TestRange(t *testing.T) {
	mh := NewMapHeap[int, int]()
	for i := 0; i < 10; i++ {
		mh.Upsert(i, int64(i), i*i)
	}

	sum := 0
	mh.Range(func(it *Item[int, int]) bool {
		sum += it.Key
		return true
	})
	if sum != 45 {
		t.Errorf("Expected key sum 45, got %d", sum)
	}

	visited := 0
	mh.Range(func(it *Item[int, int]) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range should stop after fn returned false, visited %d", visited)
	}
}
