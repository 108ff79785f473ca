package main

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "poolstatsd",
	Short: "Storage-pool read-history statistics daemon",
	Long:  "poolstatsd hosts per-pool read-history stores and exports them as virtual text sources over a stats socket.",
}

func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("app", "poolstatsd").Logger()

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
