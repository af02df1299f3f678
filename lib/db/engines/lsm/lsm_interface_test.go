package lsm

import (
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
	dbtesting "github.com/ValentinKolb/aKV/lib/db/testing"
)

func newMemDB(tb testing.TB) db.KVDB {
	kv, err := NewLSMDB(&Options{InMemory: true})
	if err != nil {
		tb.Fatalf("failed to open in-memory store: %v", err)
	}
	return kv
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "LSM", func() db.KVDB {
		return newMemDB(t)
	})
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewLSMDB(&Options{Dir: dir, Sync: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := kv.Set([]byte("persist"), []byte("me")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	kv, err = NewLSMDB(&Options{Dir: dir})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer kv.Close()

	value, ok, err := kv.Get([]byte("persist"))
	if err != nil || !ok || string(value) != "me" {
		t.Fatalf("expected persisted value 'me', got %q (found=%v, err=%v)", value, ok, err)
	}
}

func TestGetInfo(t *testing.T) {
	kv := newMemDB(t)
	defer kv.Close()

	for i := 0; i < 10; i++ {
		if err := kv.Set([]byte{byte(i)}, make([]byte, 100)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	info := kv.GetInfo()
	if info.DbType != db.ImplLSM {
		t.Errorf("expected db type %q, got %q", db.ImplLSM, info.DbType)
	}
	if !kv.SupportsFeature(db.FeatureRange | db.FeatureDeleteRange) {
		t.Errorf("expected range features to be supported")
	}
	if kv.SupportsFeature(db.Feature(1 << 40)) {
		t.Errorf("unexpected support for unknown feature")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "LSM", func() db.KVDB {
		return newMemDB(b)
	})
}
