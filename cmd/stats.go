package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/query"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-wide totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := query.NewReader(st).Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		formatStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func formatStats(out io.Writer, stats *model.StoreStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "batches\t%d\n", stats.Batches)
	for _, kind := range model.Kinds {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", kind, stats.EntityCounts[kind])
	}
	_, _ = fmt.Fprintf(w, "captured\t%d\n", stats.Captured)
	_, _ = fmt.Fprintf(w, "size_bytes\t%d\n", stats.SizeBytes)
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
