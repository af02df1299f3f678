package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("DeleteRange", func(t *testing.T) {
			testDeleteRange(t, factory())
		})

		t.Run("RangeOrder", func(t *testing.T) {
			testRangeOrder(t, factory())
		})

		t.Run("RangeBounds", func(t *testing.T) {
			testRangeBounds(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustSet(t testing.TB, database db.KVDB, key, value []byte) {
	t.Helper()
	if err := database.Set(key, value); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func collect(t testing.TB, database db.KVDB, lower, upper []byte) []string {
	t.Helper()
	var keys []string
	err := database.Range(lower, upper, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := []byte("test-key")
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1)

	result, exists, err := database.Get(testKey)
	if err != nil || !exists {
		t.Fatalf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, database, testKey, testValue2)

	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists, _ = database.Get([]byte("nonexistent-key")); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	key := []byte("delete-key")
	mustSet(t, database, key, []byte("value"))

	if err := database.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, exists, _ := database.Get(key); exists {
		t.Errorf("Key %s should not exist after Delete", key)
	}

	// deleting a missing key is not an error
	if err := database.Delete([]byte("never-written")); err != nil {
		t.Errorf("Delete of a missing key returned %v", err)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	key := []byte("has-key")
	if ok, _ := database.Has(key); ok {
		t.Errorf("Has should return false before Set")
	}

	mustSet(t, database, key, []byte("v"))
	if ok, _ := database.Has(key); !ok {
		t.Errorf("Has should return true after Set")
	}

	_ = database.Delete(key)
	if ok, _ := database.Has(key); ok {
		t.Errorf("Has should return false after Delete")
	}
}

func testDeleteRange(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDeleteRange|db.FeatureRange)

	for _, k := range []string{"a1", "a2", "b1", "b2", "c1"} {
		mustSet(t, database, []byte(k), []byte(k))
	}

	if err := database.DeleteRange([]byte("b"), []byte("c")); err != nil {
		t.Fatalf("DeleteRange failed: %v", err)
	}

	got := collect(t, database, nil, nil)
	want := []string{"a1", "a2", "c1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Keys after DeleteRange = %v, want %v", got, want)
	}
}

func testRangeOrder(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange)

	// insert in reverse order
	for i := 99; i >= 0; i-- {
		mustSet(t, database, []byte(fmt.Sprintf("key-%03d", i)), []byte{byte(i)})
	}

	keys := collect(t, database, nil, nil)
	if len(keys) != 100 {
		t.Fatalf("Range visited %d keys, want 100", len(keys))
	}
	for i, k := range keys {
		if want := fmt.Sprintf("key-%03d", i); k != want {
			t.Fatalf("Range position %d = %s, want %s", i, k, want)
		}
	}

	// early stop
	visited := 0
	_ = database.Range(nil, nil, func(_, _ []byte) bool {
		visited++
		return visited < 10
	})
	if visited != 10 {
		t.Errorf("Range should stop when fn returns false, visited %d", visited)
	}
}

func testRangeBounds(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange)

	prefix := []byte{0x00, 0x02}
	mustSet(t, database, []byte{0x00, 0x01, 'x'}, []byte("before"))
	mustSet(t, database, append(append([]byte{}, prefix...), 'a'), []byte("in"))
	mustSet(t, database, append(append([]byte{}, prefix...), 'b'), []byte("in"))
	mustSet(t, database, []byte{0x00, 0x03}, []byte("after"))

	count := 0
	err := database.Range(prefix, db.PrefixEnd(prefix), func(_, value []byte) bool {
		if string(value) != "in" {
			t.Errorf("Range returned value %q outside the bounds", value)
		}
		count++
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Range inside prefix visited %d keys, want 2", count)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyValueKey := []byte("empty-value-key")
	mustSet(t, database, emptyValueKey, nil)

	result, exists, _ := database.Get(emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	binaryKey := []byte{0x00, 0xff, 0x00, ':', '/'}
	mustSet(t, database, binaryKey, []byte("binary"))
	if result, exists, _ = database.Get(binaryKey); !exists || string(result) != "binary" {
		t.Errorf("Binary key lookup = %q, %v", result, exists)
	}

	largeValueKey := []byte("large-value-key")
	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustSet(t, database, largeValueKey, largeValue)

	result, exists, _ = database.Get(largeValueKey)
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch: got %d bytes, want %d", len(result), len(largeValue))
	}
}

func testConcurrentWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	const (
		writers = 8
		perKey  = 200
	)

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				key := []byte(fmt.Sprintf("w%d-%d", w, i))
				if err := database.Set(key, key); err != nil {
					t.Errorf("concurrent Set failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < perKey; i++ {
			key := []byte(fmt.Sprintf("w%d-%d", w, i))
			if v, ok, _ := database.Get(key); !ok || !bytes.Equal(v, key) {
				t.Fatalf("Key %s missing or wrong after concurrent writes", key)
			}
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureRange)

	// simulate a session store: create, update, delete half
	const sessions = 500
	for i := 0; i < sessions; i++ {
		mustSet(t, database, []byte(fmt.Sprintf("session:%04d", i)), []byte("created"))
	}
	for i := 0; i < sessions; i += 2 {
		mustSet(t, database, []byte(fmt.Sprintf("session:%04d", i)), []byte("updated"))
	}
	for i := 1; i < sessions; i += 2 {
		if err := database.Delete([]byte(fmt.Sprintf("session:%04d", i))); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}

	prefix := []byte("session:")
	updated := 0
	err := database.Range(prefix, db.PrefixEnd(prefix), func(_, value []byte) bool {
		if string(value) != "updated" {
			t.Errorf("Unexpected value %q", value)
		}
		updated++
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if updated != sessions/2 {
		t.Errorf("Found %d sessions, want %d", updated, sessions/2)
	}
}
