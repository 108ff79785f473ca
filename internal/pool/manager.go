// Package pool ties a read-history store and its exported kstat source to
// each active storage pool.
package pool

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"poolstats/internal/domain"
	"poolstats/internal/history"
	"poolstats/internal/kstat"
)

// Namespace prefixes every pool source name, e.g. "pool/tank/reads".
const Namespace = "pool"

// Pool is one active owner: a name, its history store, and the installed
// source. ksp stays nil when installation failed; the store still records.
type Pool struct {
	name string
	hist *history.Store
	ksp  *kstat.Source
}

func (p *Pool) Name() string            { return p.name }
func (p *Pool) History() *history.Store { return p.hist }

// Manager tracks active pools. First use activates a pool: the store is
// created empty and its source installed under Namespace/<name>.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	kstats *kstat.Registry
	log    zerolog.Logger
}

func NewManager(kstats *kstat.Registry, log zerolog.Logger) *Manager {
	return &Manager{pools: make(map[string]*Pool), kstats: kstats, log: log}
}

// Ensure returns the pool, activating it if absent.
func (m *Manager) Ensure(name string) *Pool {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if ok {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[name]; ok {
		return p
	}

	st := history.NewStore()
	src := st.Source(Namespace + "/" + name)
	if err := m.kstats.Install(src); err != nil {
		// Non-fatal: the pool keeps recording, merely invisible to readers.
		m.log.Warn().Err(err).Str("pool", name).Msg("source installation failed")
		src = nil
	}
	p = &Pool{name: name, hist: st, ksp: src}
	m.pools[name] = p
	return p
}

// Get returns an already active pool.
func (m *Manager) Get(name string) (*Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[name]
	return p, ok
}

// Close tears a pool down: the source is deleted first, then the store is
// drained. Returns false for unknown pools.
func (m *Manager) Close(name string) bool {
	m.mu.Lock()
	p, ok := m.pools[name]
	if ok {
		delete(m.pools, name)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if p.ksp != nil {
		m.kstats.Delete(p.ksp.FullName())
	}
	p.hist.Drain()
	return true
}

// CloseAll tears down every active pool, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*Pool)
	m.mu.Unlock()
	for _, p := range pools {
		if p.ksp != nil {
			m.kstats.Delete(p.ksp.FullName())
		}
		p.hist.Drain()
	}
}

// Names lists active pools in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.pools))
	for name := range m.pools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// The methods below are the engine surface consumed by the socket server.

// Record appends one read event to the named pool's history. It never
// fails: diagnostics must not be able to fail the read path they observe.
func (m *Manager) Record(_ context.Context, name string, ev domain.ReadEvent, task domain.Task) {
	m.Ensure(name).hist.Record(ev, task, ev.Cached())
}

// ReadSource streams one full export pass of a source to w.
func (m *Manager) ReadSource(_ context.Context, name string, w io.Writer) (kstat.Stat, error) {
	return m.kstats.Read(name, w)
}

// ClearSource discards a source's rows and reports the state after.
func (m *Manager) ClearSource(_ context.Context, name string) (kstat.Stat, error) {
	return m.kstats.Clear(name)
}

// Sources lists the installed source names.
func (m *Manager) Sources(context.Context) []string {
	return m.kstats.Names()
}

// ClosePool tears down the named pool.
func (m *Manager) ClosePool(_ context.Context, name string) bool {
	return m.Close(name)
}

func (m *Manager) Health(context.Context) (bool, string) {
	return true, "ok"
}
