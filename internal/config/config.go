package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"poolstats/internal/tunables"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Stats  StatsConfig  `mapstructure:"stats"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Network        string `mapstructure:"network"`
	Address        string `mapstructure:"address"`
	UnixSocketPath string `mapstructure:"unix_socket_path"`
	AuthToken      string `mapstructure:"auth_token"`
	MaxInflight    int    `mapstructure:"max_inflight"`
	QueueLimit     int    `mapstructure:"queue_limit"`
	Workers        int    `mapstructure:"workers"`
}

// StatsConfig mirrors the process-wide history tunables. Both are
// hot-reloadable: a changed config file re-applies them without restart.
type StatsConfig struct {
	ReadHistory     int  `mapstructure:"read_history"`
	ReadHistoryHits bool `mapstructure:"read_history_hits"`
}

// Apply pushes the values into the live tunables.
func (sc StatsConfig) Apply() {
	tunables.SetReadHistory(sc.ReadHistory)
	tunables.SetReadHistoryHits(sc.ReadHistoryHits)
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch re-reads the file whenever it changes and hands each valid new
// config to onChange. Invalid updates are logged and dropped; the running
// values stay as they were.
func Watch(path string, log zerolog.Logger, onChange func(Config)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config reload rejected")
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("poolstats")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.network", "tcp")
	v.SetDefault("server.address", "127.0.0.1:9680")
	v.SetDefault("stats.read_history", 0)
	v.SetDefault("stats.read_history_hits", false)
	v.SetDefault("log.level", "info")
}

func (c Config) Validate() error {
	switch c.Server.Network {
	case "tcp":
		if c.Server.Address == "" {
			return fmt.Errorf("server.address is required for tcp")
		}
	case "unix":
		if c.Server.UnixSocketPath == "" {
			return fmt.Errorf("server.unix_socket_path is required for unix")
		}
	default:
		return fmt.Errorf("server.network must be tcp or unix, got %q", c.Server.Network)
	}
	if c.Stats.ReadHistory < 0 {
		return fmt.Errorf("stats.read_history must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
