package pool

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"poolstats/internal/domain"
	"poolstats/internal/kstat"
	"poolstats/internal/tunables"
)

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	tunables.SetReadHistory(capacity)
	t.Cleanup(func() {
		tunables.SetReadHistory(0)
		tunables.SetReadHistoryHits(false)
	})
	return NewManager(kstat.NewRegistry(), zerolog.Nop())
}

func TestEnsureActivatesOnceAndInstallsSource(t *testing.T) {
	m := newTestManager(t, 4)

	a := m.Ensure("tank")
	b := m.Ensure("tank")
	if a != b {
		t.Fatal("expected the same pool on repeated ensure")
	}
	if got := m.Sources(context.Background()); len(got) != 1 || got[0] != "pool/tank/reads" {
		t.Fatalf("unexpected sources: %v", got)
	}
	if got := m.Names(); len(got) != 1 || got[0] != "tank" {
		t.Fatalf("unexpected pools: %v", got)
	}
}

func TestInstallFailureKeepsStoreRecording(t *testing.T) {
	reg := kstat.NewRegistry()
	tunables.SetReadHistory(4)
	t.Cleanup(func() { tunables.SetReadHistory(0) })

	first := NewManager(reg, zerolog.Nop())
	second := NewManager(reg, zerolog.Nop())
	first.Ensure("tank")

	// Same registry, same name: installation fails but the pool must
	// still collect history.
	p := second.Ensure("tank")
	if p.ksp != nil {
		t.Fatal("expected nil source after failed install")
	}
	second.Record(context.Background(), "tank", domain.ReadEvent{Origin: "zfs_read"}, domain.Task{PID: 1, Comm: "x"})
	if p.History().Len() != 1 {
		t.Fatalf("expected invisible store to keep recording, got %d", p.History().Len())
	}
}

func TestRecordDerivesCacheHit(t *testing.T) {
	m := newTestManager(t, 4)
	ctx := context.Background()

	m.Record(ctx, "tank", domain.ReadEvent{Origin: "arc_hit", Flags: domain.FlagCached}, domain.Task{})
	p, _ := m.Get("tank")
	if p.History().Len() != 0 {
		t.Fatal("expected cache hit filtered while hits are off")
	}

	tunables.SetReadHistoryHits(true)
	m.Record(ctx, "tank", domain.ReadEvent{Origin: "arc_hit", Flags: domain.FlagCached}, domain.Task{})
	if p.History().Len() != 1 {
		t.Fatalf("expected cache hit recorded, got %d", p.History().Len())
	}
}

func TestReadAndClearThroughManager(t *testing.T) {
	m := newTestManager(t, 4)
	ctx := context.Background()
	m.Record(ctx, "tank", domain.ReadEvent{Origin: "zfs_read"}, domain.Task{PID: 9, Comm: "reader"})

	var buf bytes.Buffer
	stat, err := m.ReadSource(ctx, "pool/tank/reads", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if stat.Rows != 1 {
		t.Fatalf("expected one row, got %+v", stat)
	}
	if !strings.Contains(buf.String(), "zfs_read") {
		t.Fatalf("pass output missing row: %q", buf.String())
	}

	if stat, err = m.ClearSource(ctx, "pool/tank/reads"); err != nil || stat.Rows != 0 {
		t.Fatalf("clear: stat=%+v err=%v", stat, err)
	}
	p, _ := m.Get("tank")
	if p.History().Len() != 0 {
		t.Fatal("expected drained history after clear")
	}
}

func TestCloseDeregistersThenDrains(t *testing.T) {
	m := newTestManager(t, 4)
	ctx := context.Background()
	m.Record(ctx, "tank", domain.ReadEvent{Origin: "zfs_read"}, domain.Task{})
	p, _ := m.Get("tank")

	if !m.ClosePool(ctx, "tank") {
		t.Fatal("expected close to find the pool")
	}
	if m.ClosePool(ctx, "tank") {
		t.Fatal("expected second close to miss")
	}
	if len(m.Sources(ctx)) != 0 {
		t.Fatalf("expected source deregistered, got %v", m.Sources(ctx))
	}
	if p.History().Len() != 0 {
		t.Fatal("expected drained store after close")
	}

	// Reactivation starts an empty store with a fresh uid sequence.
	q := m.Ensure("tank")
	if q == p {
		t.Fatal("expected a fresh pool after close")
	}
}

func TestCloseAll(t *testing.T) {
	m := newTestManager(t, 4)
	m.Ensure("tank")
	m.Ensure("dozer")
	m.CloseAll()
	if len(m.Names()) != 0 || len(m.Sources(context.Background())) != 0 {
		t.Fatalf("expected everything torn down, pools=%v sources=%v", m.Names(), m.Sources(context.Background()))
	}
}
