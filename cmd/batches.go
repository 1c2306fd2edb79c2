package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/query"
	"github.com/driftline/reddit-ingest/internal/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect the batch ledger",
	Long:  "Commands for listing batches and viewing one batch's record or stored entities.",
}

// -- batches list --

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		operation, _ := cmd.Flags().GetString("operation")
		limit, _ := cmd.Flags().GetInt("limit")

		batches, err := query.NewReader(st).Batches(ctx, store.BatchFilter{
			Status:    model.BatchStatus(status),
			Operation: operation,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "batches list")
		}

		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		formatBatchList(cmd.OutOrStdout(), batches)
		return nil
	},
}

// -- batches show --

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch's ledger record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := query.NewReader(st).Batch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "batches show")
		}
		if b == nil {
			return eris.Errorf("batch %s not found", args[0])
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

// -- batches entities --

var batchesEntitiesCmd = &cobra.Command{
	Use:   "entities <batch-id>",
	Short: "Show every entity a batch stored, grouped by kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		set, err := query.NewReader(st).ByBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "batches entities")
		}
		return printJSON(cmd.OutOrStdout(), set)
	},
}

func init() {
	batchesListCmd.Flags().String("status", "", "filter by status (processing, completed, failed)")
	batchesListCmd.Flags().String("operation", "", "filter by operation name")
	batchesListCmd.Flags().Int("limit", 50, "max number of batches to display")

	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesShowCmd)
	batchesCmd.AddCommand(batchesEntitiesCmd)
	rootCmd.AddCommand(batchesCmd)
}

// formatBatchList writes a tabular list of batches to out.
func formatBatchList(out io.Writer, batches []model.Batch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOPERATION\tSTATUS\tSTORED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t------\t-------\t--------")

	for _, b := range batches {
		dur := ""
		if b.CompletedAt != nil {
			dur = b.CompletedAt.Sub(b.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(b.BatchID), b.OperationName, b.Status,
			b.EntitiesStored, b.Errors,
			b.StartedAt.Format(time.RFC3339), dur)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
