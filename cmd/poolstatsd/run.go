package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"poolstats/internal/config"
	"poolstats/internal/kstat"
	"poolstats/internal/pool"
	"poolstats/internal/socket"
)

var cfgPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the stats service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&cfgPath, "config", "poolstats.yaml", "path to config file")
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg)
	cfg.Stats.Apply()

	kstats := kstat.NewRegistry()
	mgr := pool.NewManager(kstats, log.Logger)
	defer mgr.CloseAll()

	srv := socket.NewServer(socket.Config{
		Network:        cfg.Server.Network,
		Address:        cfg.Server.Address,
		UnixSocketPath: cfg.Server.UnixSocketPath,
		AuthToken:      cfg.Server.AuthToken,
		MaxInflight:    cfg.Server.MaxInflight,
		QueueLimit:     cfg.Server.QueueLimit,
		Workers:        cfg.Server.Workers,
	}, mgr, log.Logger)

	// Tunables are hot-reloadable; a rewritten config takes effect on the
	// next insertion with no restart.
	if err := config.Watch(cfgPath, log.Logger, func(next config.Config) {
		applyLogLevel(next)
		next.Stats.Apply()
		log.Info().
			Int("read_history", next.Stats.ReadHistory).
			Bool("read_history_hits", next.Stats.ReadHistoryHits).
			Msg("tunables reloaded")
	}); err != nil {
		log.Warn().Err(err).Msg("config watch disabled")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func applyLogLevel(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}
