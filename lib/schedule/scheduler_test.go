package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

const testNow = int64(1_700_000_000)

func newTestScheduler() *Scheduler {
	return NewWithClock("test", func() time.Time { return time.Unix(testNow, 0) })
}

func collectFlush(s *Scheduler, now int64) []Entry {
	var out []Entry
	s.Flush(now, func(e Entry) { out = append(out, e) })
	return out
}

func TestAddTriggerTime(t *testing.T) {
	s := newTestScheduler()

	trigger, err := s.Add(5, "k", 1, nil, nil, false)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if trigger != testNow+5 {
		t.Errorf("expected trigger %d, got %d", testNow+5, trigger)
	}
	if got, ok := s.TriggerTime("k", 1); !ok || got != testNow+5 {
		t.Errorf("TriggerTime = %d, %v", got, ok)
	}

	// absolute schedule
	if _, err := s.Add(testNow+100, "abs", 1, nil, nil, true); err != nil {
		t.Fatalf("Add(epoch) failed: %v", err)
	}
	if got, _ := s.TriggerTime("abs", 1); got != testNow+100 {
		t.Errorf("expected absolute trigger %d, got %d", testNow+100, got)
	}

	// same key, different select is a different entry
	if _, ok := s.TriggerTime("k", 2); ok {
		t.Errorf("unexpected entry for select 2")
	}
}

func TestAddRejected(t *testing.T) {
	s := newTestScheduler()
	s.Add(10, "existing", 1, nil, nil, false)

	tests := []struct {
		name     string
		schedule int64
		epoch    bool
	}{
		{"negative relative", -1, false},
		{"negative epoch", -1, true},
		{"past epoch", testNow - 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(tt.schedule, "existing", 1, nil, nil, tt.epoch)
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("expected ErrRejected, got %v", err)
			}
			if got, _ := s.TriggerTime("existing", 1); got != testNow+10 {
				t.Errorf("rejected Add must not modify the entry, trigger is %d", got)
			}
			if s.Len() != 1 {
				t.Errorf("rejected Add must not add entries, have %d", s.Len())
			}
		})
	}
}

func TestReplace(t *testing.T) {
	s := newTestScheduler()

	s.Add(10, "k", 1, nil, []byte("old"), false)
	s.Add(3, "k", 1, nil, []byte("new"), false)

	if s.Len() != 1 {
		t.Fatalf("expected exactly one entry after re-adding, got %d", s.Len())
	}
	flushed := collectFlush(s, testNow+100)
	if len(flushed) != 1 || string(flushed[0].Value) != "new" || flushed[0].Trigger != testNow+3 {
		t.Errorf("expected the replacement entry, got %+v", flushed)
	}
}

func TestFlushBoundary(t *testing.T) {
	s := newTestScheduler()
	s.Add(1, "a", 1, nil, nil, false)
	s.Add(2, "b", 1, nil, nil, false)
	s.Add(3, "c", 1, nil, nil, false)

	// trigger == now is not yet due
	flushed := collectFlush(s, testNow+2)
	if len(flushed) != 1 || flushed[0].Key != "a" {
		t.Fatalf("expected only 'a' to be flushed, got %+v", flushed)
	}
	if _, ok := s.TriggerTime("b", 1); !ok {
		t.Errorf("'b' must stay scheduled")
	}

	flushed = collectFlush(s, testNow+10)
	if len(flushed) != 2 || flushed[0].Key != "b" || flushed[1].Key != "c" {
		t.Fatalf("expected 'b' then 'c', got %+v", flushed)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty scheduler, %d entries left", s.Len())
	}
}

func TestFlushRandomized(t *testing.T) {
	s := newTestScheduler()
	rnd := rand.New(rand.NewSource(42))

	want := map[Key]int64{}
	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", rnd.Intn(300))
		sel := uint16(1 + rnd.Intn(3))
		switch rnd.Intn(3) {
		case 0, 1:
			trigger, err := s.Add(int64(rnd.Intn(100)), key, sel, nil, nil, false)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			want[Key{key, sel}] = trigger
		case 2:
			s.Delete(key, sel)
			delete(want, Key{key, sel})
		}
	}

	cutoff := testNow + 50
	flushed := collectFlush(s, cutoff)

	last := int64(0)
	for _, e := range flushed {
		if e.Trigger >= cutoff {
			t.Errorf("entry %q triggers at %d, must not be flushed before %d", e.Key, e.Trigger, cutoff)
		}
		if e.Trigger < last {
			t.Errorf("flush order violated")
		}
		last = e.Trigger
		if want[Key{e.Key, e.Select}] != e.Trigger {
			t.Errorf("unexpected entry %+v", e)
		}
		delete(want, Key{e.Key, e.Select})
	}

	for k, trigger := range want {
		if trigger < cutoff {
			t.Errorf("entry %v with trigger %d should have been flushed", k, trigger)
		}
		if got, ok := s.TriggerTime(k.Name, k.Select); !ok || got != trigger {
			t.Errorf("entry %v should be untouched, got %d, %v", k, got, ok)
		}
	}
	if s.Len() != len(want) {
		t.Errorf("expected %d remaining entries, got %d", len(want), s.Len())
	}
}

func TestDeleteCountReset(t *testing.T) {
	s := newTestScheduler()
	for i := 0; i < 10; i++ {
		s.Add(10, fmt.Sprintf("k%d", i), uint16(1+i%2), nil, nil, false)
	}

	if s.Count(1) != 5 || s.Count(2) != 5 || s.Count(3) != 0 {
		t.Errorf("unexpected counts: %d, %d, %d", s.Count(1), s.Count(2), s.Count(3))
	}

	if !s.Delete("k0", 1) {
		t.Errorf("Delete(k0, 1) should succeed")
	}
	if s.Delete("k0", 1) {
		t.Errorf("Delete of a missing entry should return false")
	}

	if n := s.DeleteSelect(2); n != 5 {
		t.Errorf("DeleteSelect(2) removed %d entries, expected 5", n)
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", s.Len())
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Reset should remove all entries")
	}
}

func TestFlushSinkMayReenter(t *testing.T) {
	s := newTestScheduler()
	s.Add(1, "k", 1, nil, nil, false)

	n := s.Flush(testNow+5, func(e Entry) {
		// reschedule from inside the sink
		s.Add(60, e.Key, e.Select, nil, nil, false)
	})
	if n != 1 {
		t.Fatalf("expected one flushed entry, got %d", n)
	}
	if got, ok := s.TriggerTime("k", 1); !ok || got != testNow+60 {
		t.Errorf("expected rescheduled entry, got %d, %v", got, ok)
	}
}
