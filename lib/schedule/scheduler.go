package schedule

import (
	"sync"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger is the logger used by the schedulers
var Logger = logger.GetLogger("schedule")

// ErrRejected is returned by Add for a negative schedule or an epoch in the past
var ErrRejected = errors.New("schedule: rejected")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Key identifies an entry
type Key struct {
	Name   string
	Select uint16
}

// Entry is a scheduled action. Value is only set for future writes.
type Entry struct {
	Trigger  int64 // Absolute trigger time (unix seconds)
	Key      string
	Select   uint16
	Database *db.Database
	Value    []byte
}

// Scheduler keeps entries ordered by trigger time
type Scheduler struct {
	name    string
	now     func() time.Time
	mu      sync.Mutex
	entries *util.MapHeap[Key, Entry]
}

// New creates an empty scheduler. The name is only used for logging.
func New(name string) *Scheduler {
	return NewWithClock(name, time.Now)
}

// NewWithClock creates an empty scheduler that uses now for relative schedules
func NewWithClock(name string, now func() time.Time) *Scheduler {
	return &Scheduler{
		name:    name,
		now:     now,
		entries: util.NewMapHeap[Key, Entry](),
	}
}

// Name returns the name of the scheduler
func (s *Scheduler) Name() string { return s.name }

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// Add schedules an entry for (key, sel) and returns its trigger time.
//
// If epoch is false the entry triggers schedule seconds from now, otherwise
// schedule is the absolute trigger time. A negative schedule and an absolute
// time in the past are rejected with ErrRejected. An existing entry for the same
// (key, sel) is replaced.
func (s *Scheduler) Add(schedule int64, key string, sel uint16, database *db.Database, value []byte, epoch bool) (int64, error) {
	if schedule < 0 {
		return 0, ErrRejected
	}

	now := s.now().Unix()
	trigger := schedule
	if !epoch {
		trigger = now + schedule
	} else if trigger < now {
		return 0, ErrRejected
	}

	k := Key{Name: key, Select: sel}
	entry := Entry{
		Trigger:  trigger,
		Key:      key,
		Select:   sel,
		Database: database,
		Value:    value,
	}

	s.mu.Lock()
	replaced := s.entries.Upsert(k, trigger, entry)
	s.mu.Unlock()

	if replaced {
		Logger.Debugf("%s: replaced entry for %q (select %d), triggers at %d", s.name, key, sel, trigger)
	}
	return trigger, nil
}

// Flush removes every entry with a trigger time before now and passes it to
// sink in trigger order. It returns the number of flushed entries.
func (s *Scheduler) Flush(now int64, sink func(e Entry)) int {
	var due []Entry

	s.mu.Lock()
	for {
		next, ok := s.entries.Peek()
		if !ok || next.Priority >= now {
			break
		}
		s.entries.PopMin()
		due = append(due, next.Value)
	}
	s.mu.Unlock()

	for _, e := range due {
		sink(e)
	}
	if len(due) > 0 {
		Logger.Debugf("%s: flushed %d entries", s.name, len(due))
	}
	return len(due)
}

// Delete cancels the entry for (key, sel). It returns false if there was none.
func (s *Scheduler) Delete(key string, sel uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries.RemoveByKey(Key{Name: key, Select: sel})
	return ok
}

// DeleteSelect cancels every entry of the given select and returns how many were removed
func (s *Scheduler) DeleteSelect(sel uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.RemoveIf(func(it *util.Item[Key, Entry]) bool {
		return it.Key.Select == sel
	})
}

// Reset cancels all entries
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Clear()
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// TriggerTime returns the trigger time of the entry for (key, sel)
func (s *Scheduler) TriggerTime(key string, sel uint16) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.entries.GetByKey(Key{Name: key, Select: sel})
	if !ok {
		return 0, false
	}
	return it.Priority, true
}

// Count returns the number of entries of the given select
func (s *Scheduler) Count(sel uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	s.entries.Range(func(it *util.Item[Key, Entry]) bool {
		if it.Key.Select == sel {
			n++
		}
		return true
	})
	return n
}

// Len returns the total number of entries
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}
