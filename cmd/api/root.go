package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gallery/service/internal/config"
)

func newRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	serve := newServeCmd(cfg, log)

	cmd := &cobra.Command{
		Use:           "gallery",
		Short:         "Gallery serves postings and images backed by object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand starts the server.
		RunE: serve.RunE,
	}

	cmd.AddCommand(
		serve,
		newMigrateCmd(cfg, log),
		newOrphansCmd(cfg, log),
	)
	return cmd
}
