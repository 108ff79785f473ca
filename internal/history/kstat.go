package history

import (
	"fmt"

	"poolstats/internal/kstat"
)

// EntrySize is the fixed accounting size of one retained entry, reported
// to readers so they can size output buffers before a pass.
const EntrySize = 128

// readsRaw adapts a Store to the kstat raw-ops contract. Row and Header
// are pure formatting; Seek runs under the store lock, held by the
// registry for the whole pass.
type readsRaw struct {
	s *Store
}

func (r readsRaw) Header() string {
	return fmt.Sprintf("%-8s %-16s %-8s %-8s %-8s %-8s %-8s %-24s %-8s %-16s\n",
		"UID", "start", "objset", "object", "level", "blkid", "aflags",
		"origin", "pid", "process")
}

func (r readsRaw) Row(data any) string {
	e := data.(*Entry)
	return fmt.Sprintf("%-8d %-16d 0x%-6x %-8d %-8d %-8d 0x%-6x %-24s %-8d %-16s\n",
		e.UID, e.Start, e.Objset, e.Object, e.Level, e.Blkid, e.Flags,
		e.Origin, e.PID, e.Comm)
}

// Seek walks oldest to newest: the list keeps newest at the front, so the
// pass starts at the back and steps toward the front.
func (r readsRaw) Seek(n int64) any {
	s := r.s
	if n == 0 {
		s.cur = s.list.Back()
	} else if s.cur != nil {
		s.cur = s.cur.Prev()
	}
	if s.cur == nil {
		return nil
	}
	return s.cur.Value.(*Entry)
}

// Source builds the virtual source exporting this store as
// "<module>/reads", class "misc". The store lock doubles as the source
// lock; a write to the source drains the store in place.
func (s *Store) Source(module string) *kstat.Source {
	return &kstat.Source{
		Module: module,
		Name:   "reads",
		Class:  "misc",
		Lock:   &s.mu,
		Raw:    readsRaw{s: s},
		Update: func(op kstat.Op) kstat.Stat {
			if op == kstat.OpWrite {
				s.drainLocked()
			}
			n := s.size.Load()
			return kstat.Stat{Rows: n, Bytes: n * EntrySize}
		},
	}
}
