// Package kstat implements a small registry of named virtual statistics
// sources. A source does not hold data of its own: each read locks the
// owner's structure, asks the owner how many rows it has, then walks the
// rows oldest to newest, formatting each into a fixed-width text line.
// Writing to a source signals the owner to discard its rows.
package kstat

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Op distinguishes the two accesses a source update hook can observe.
type Op int

const (
	OpRead Op = iota
	OpWrite
)

// Stat reports the row count and total data size of a source at the moment
// its lock was taken, letting readers size output buffers up front.
type Stat struct {
	Rows  int64
	Bytes int64
}

// Raw is implemented by owners that export fixed-width text rows.
//
// Seek positions the walk cursor: n == 0 rewinds to the oldest row, each
// n > 0 advances one row toward the newest, and nil means the walk is
// exhausted. Seek must only be called with the source lock held, and the
// lock is held continuously across an entire pass so the walk never
// interleaves with eviction.
type Raw interface {
	Header() string
	Row(data any) string
	Seek(n int64) any
}

// Source is one registered virtual source. Lock is shared with the owning
// structure; Update runs with it held before every read or write pass.
type Source struct {
	Module string
	Name   string
	Class  string
	Lock   sync.Locker
	Raw    Raw
	Update func(op Op) Stat
}

// FullName returns the registry key, e.g. "pool/tank/reads".
func (s *Source) FullName() string {
	return s.Module + "/" + s.Name
}

// Registry indexes installed sources by full name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Source)}
}

// Install registers a source. Installation failure is non-fatal to the
// owner: it keeps collecting, merely invisible to readers.
func (r *Registry) Install(src *Source) error {
	if src == nil || src.Module == "" || src.Name == "" {
		return fmt.Errorf("kstat: source module and name are required")
	}
	if src.Lock == nil || src.Raw == nil {
		return fmt.Errorf("kstat: source %q needs a lock and raw ops", src.FullName())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := src.FullName()
	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("kstat: source %q already installed", name)
	}
	r.sources[name] = src
	return nil
}

// Delete removes a source. Deleting an unknown name is a no-op.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, name)
}

// Names lists installed sources in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) lookup(name string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("kstat: no source %q", name)
	}
	return src, nil
}

// Read performs one full export pass: header line, then every row oldest to
// newest, written to w. The source lock is held for the whole pass, so
// writers to the owning structure block until the pass completes. That is
// the intended trade-off: readers get a stable snapshot as of lock
// acquisition.
func (r *Registry) Read(name string, w io.Writer) (Stat, error) {
	src, err := r.lookup(name)
	if err != nil {
		return Stat{}, err
	}
	src.Lock.Lock()
	defer src.Lock.Unlock()

	st := src.update(OpRead)
	if _, err := io.WriteString(w, src.Raw.Header()); err != nil {
		return st, err
	}
	for n := int64(0); ; n++ {
		data := src.Raw.Seek(n)
		if data == nil {
			break
		}
		if _, err := io.WriteString(w, src.Raw.Row(data)); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Clear signals a write to the source, discarding the owner's rows. The
// returned Stat reflects the source after the discard.
func (r *Registry) Clear(name string) (Stat, error) {
	src, err := r.lookup(name)
	if err != nil {
		return Stat{}, err
	}
	src.Lock.Lock()
	defer src.Lock.Unlock()
	return src.update(OpWrite), nil
}

// Stat returns the current row count and data size of a source.
func (r *Registry) Stat(name string) (Stat, error) {
	src, err := r.lookup(name)
	if err != nil {
		return Stat{}, err
	}
	src.Lock.Lock()
	defer src.Lock.Unlock()
	return src.update(OpRead), nil
}

func (s *Source) update(op Op) Stat {
	if s.Update == nil {
		return Stat{}
	}
	return s.Update(op)
}
