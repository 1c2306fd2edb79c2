package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/query"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the newest stored entities",
	Long:  "Prints the most recently stored entities, across every kind or restricted to one with --kind.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		set, err := query.NewReader(st).Recent(ctx, model.EntityKind(kind), limit)
		if err != nil {
			return eris.Wrap(err, "recent")
		}
		return printJSON(cmd.OutOrStdout(), set)
	},
}

func init() {
	recentCmd.Flags().String("kind", "", "entity kind (users, posts, comments, communities, submissions, unknown, validation_error)")
	recentCmd.Flags().Int("limit", 50, "max entities per kind")

	rootCmd.AddCommand(recentCmd)
}
