package config

import (
	"os"
	"path/filepath"
	"testing"

	"poolstats/internal/tunables"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Setenv("POOLSTATS_STATS_READ_HISTORY", "256")

	path := writeConfig(t, "poolstats.yaml", `
server:
  network: tcp
  address: 127.0.0.1:9680
  auth_token: secret
stats:
  read_history: 32
  read_history_hits: true
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Stats.ReadHistory != 256 {
		t.Fatalf("expected env override, got %d", cfg.Stats.ReadHistory)
	}
	if !cfg.Stats.ReadHistoryHits {
		t.Fatal("expected read_history_hits from file")
	}
	if cfg.Server.AuthToken != "secret" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadTOMLAndDefaults(t *testing.T) {
	path := writeConfig(t, "poolstats.toml", `
[server]
network = "unix"
unix_socket_path = "/run/poolstats.sock"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Server.Network != "unix" || cfg.Server.UnixSocketPath != "/run/poolstats.sock" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Stats.ReadHistory != 0 || cfg.Stats.ReadHistoryHits {
		t.Fatalf("expected disabled stats defaults, got %+v", cfg.Stats)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Log.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"bad network", Config{Server: ServerConfig{Network: "udp", Address: "x"}, Log: LogConfig{Level: "info"}}},
		{"unix without path", Config{Server: ServerConfig{Network: "unix"}, Log: LogConfig{Level: "info"}}},
		{"negative history", Config{Server: ServerConfig{Network: "tcp", Address: "x"}, Stats: StatsConfig{ReadHistory: -1}, Log: LogConfig{Level: "info"}}},
		{"bad level", Config{Server: ServerConfig{Network: "tcp", Address: "x"}, Log: LogConfig{Level: "loud"}}},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestStatsApplyPushesTunables(t *testing.T) {
	t.Cleanup(func() {
		tunables.SetReadHistory(0)
		tunables.SetReadHistoryHits(false)
	})

	StatsConfig{ReadHistory: 64, ReadHistoryHits: true}.Apply()
	if tunables.ReadHistory() != 64 || !tunables.ReadHistoryHits() {
		t.Fatalf("tunables not applied: %d %v", tunables.ReadHistory(), tunables.ReadHistoryHits())
	}

	StatsConfig{ReadHistory: -5}.Apply()
	if tunables.ReadHistory() != 0 {
		t.Fatalf("expected negative bound clamped, got %d", tunables.ReadHistory())
	}
}
