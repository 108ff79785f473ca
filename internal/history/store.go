// Package history keeps a bounded log of recent read events per storage
// pool, for diagnostic export. Recording must never fail the read path it
// instruments: there are no error returns and the only blocking is on the
// store lock.
package history

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"poolstats/internal/domain"
	"poolstats/internal/tunables"
)

// Bounded string capacities, excluding the terminator of the original
// fixed-width layout.
const (
	originLen = 23
	commLen   = 15
)

// Entry is one retained read event.
type Entry struct {
	UID    uint64 // unique per store, strictly increasing, never reused
	Start  int64  // monotonic ns at insertion
	Objset uint64
	Object uint64
	Level  int64
	Blkid  int64
	Origin string
	Flags  uint32
	PID    int
	Comm   string
}

// Store retains the last N read events of one pool, newest first. All
// mutation happens under mu; size is additionally kept in an atomic so the
// recording fast path can observe it without locking.
type Store struct {
	mu   sync.Mutex
	list *list.List // front is newest, back is oldest
	size atomic.Int64
	uid  uint64
	cur  *list.Element // export walk cursor, guarded by mu
}

func NewStore() *Store {
	return &Store{list: list.New()}
}

var boot = time.Now()

// hrtime returns monotonic nanoseconds since process start.
func hrtime() int64 {
	return time.Since(boot).Nanoseconds()
}

// Record appends one read event on behalf of task. The caller must not
// hold the store lock. hit marks reads served from cache; those are
// dropped unless the read_history_hits tunable is on.
func (s *Store) Record(ev domain.ReadEvent, task domain.Task, hit bool) {
	// Cheap skip while collection is disabled and nothing is buffered.
	// Entries left over from before read_history dropped to zero keep
	// the slow path alive so they can still be read out or drained.
	if tunables.ReadHistory() == 0 && s.size.Load() == 0 {
		return
	}
	if !tunables.ReadHistoryHits() && hit {
		return
	}

	// Build the entry outside the lock; only uid assignment and list
	// surgery happen inside it.
	e := &Entry{
		Start:  hrtime(),
		Objset: ev.Objset,
		Object: ev.Object,
		Level:  ev.Level,
		Blkid:  ev.Blkid,
		Origin: truncate(ev.Origin, originLen),
		Flags:  ev.Flags,
		PID:    task.PID,
		Comm:   truncate(task.Comm, commLen),
	}

	s.mu.Lock()
	s.uid++
	e.UID = s.uid
	s.list.PushFront(e)
	s.size.Add(1)

	// Re-read the bound every iteration: it may change concurrently and
	// eviction observes whatever value is current.
	for int(s.size.Load()) > tunables.ReadHistory() {
		s.list.Remove(s.list.Back())
		s.size.Add(-1)
	}
	s.mu.Unlock()
}

// Drain discards every entry. The uid counter is left alone so values are
// never reused, even across drains.
func (s *Store) Drain() {
	s.mu.Lock()
	s.drainLocked()
	s.mu.Unlock()
}

func (s *Store) drainLocked() {
	s.list.Init()
	s.size.Store(0)
	s.cur = nil
}

// Len returns the current entry count.
func (s *Store) Len() int {
	return int(s.size.Load())
}

// Entries returns a snapshot of the retained entries, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, s.list.Len())
	for el := s.list.Back(); el != nil; el = el.Prev() {
		out = append(out, *el.Value.(*Entry))
	}
	return out
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	// Cut on a rune boundary so a split multi-byte character cannot leak
	// invalid UTF-8 into the formatted rows.
	cut := n
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}
