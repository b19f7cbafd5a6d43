package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/gallery/service/internal/config"
	"github.com/gallery/service/internal/posting"
)

func newOrphansCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	var (
		del        bool
		grace      time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Find stored images that no image row references",
		Long: "Lists objects under images/ without a referencing image row. " +
			"Nothing is removed unless --delete is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.svc.SweepOrphans(cmd.Context(), posting.SweepOptions{
				DryRun: !del,
				Grace:  grace,
			})
			if err != nil {
				return err
			}
			return writeSweep(cmd.OutOrStdout(), res, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "delete the orphaned objects")
	cmd.Flags().DurationVar(&grace, "grace", posting.DefaultSweepGrace, "skip objects uploaded more recently than this")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func writeSweep(w io.Writer, res *posting.SweepResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for _, key := range res.Orphans {
		if _, err := fmt.Fprintln(w, key); err != nil {
			return err
		}
	}
	if res.DryRun {
		_, err := fmt.Fprintf(w, "scanned %d objects, %d orphaned (dry run, use --delete to remove)\n",
			res.Scanned, len(res.Orphans))
		return err
	}
	_, err := fmt.Fprintf(w, "scanned %d objects, deleted %d orphaned\n", res.Scanned, res.Deleted)
	return err
}
