package db_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/engines/lsm"
)

func newDatabase(t *testing.T) *db.Database {
	kv, err := lsm.NewLSMDB(&lsm.Options{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return db.NewDatabase("test", kv)
}

func TestExecSerializes(t *testing.T) {
	d := newDatabase(t)
	defer d.Close()

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Exec(func(kv db.KVDB) error {
				// no synchronization needed here, Exec must serialize us
				running++
				if running > maxSeen {
					maxSeen = running
				}
				running--
				return kv.Set([]byte("k"), []byte("v"))
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one running Exec, saw %d", maxSeen)
	}
}

func TestClosing(t *testing.T) {
	d := newDatabase(t)

	if err := d.Exec(func(kv db.KVDB) error { return kv.Set([]byte("k"), []byte("v")) }); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !d.Closing() {
		t.Errorf("Closing() should report true after Close")
	}

	called := false
	err := d.Exec(func(db.KVDB) error { called = true; return nil })
	if !errors.Is(err, db.ErrClosing) || called {
		t.Errorf("Exec on a closed database: err=%v, called=%v", err, called)
	}
	if err := d.Scan(nil, nil, func(_, _ []byte) bool { return true }); !errors.Is(err, db.ErrClosing) {
		t.Errorf("Scan on a closed database should fail with ErrClosing, got %v", err)
	}

	// closing twice is a no-op
	if err := d.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte{0x00, 0x01}, []byte{0x00, 0x02}},
		{[]byte{0x00, 0xff}, []byte{0x01}},
		{[]byte{0xff, 0xff}, nil},
	}
	for _, tt := range tests {
		got := db.PrefixEnd(tt.prefix)
		if string(got) != string(tt.want) {
			t.Errorf("PrefixEnd(%x) = %x, want %x", tt.prefix, got, tt.want)
		}
	}
}
