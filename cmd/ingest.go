package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/driftline/reddit-ingest/internal/ingest"
	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/schema"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Process a raw API response into the store",
	Long:  "Reads a raw JSON response (from a file, stdin with '-', or every .json file in --dir), extracts entities for the named operation, and stores them as one batch per response.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		operation, _ := cmd.Flags().GetString("operation")
		metaPairs, _ := cmd.Flags().GetStringArray("meta")
		dir, _ := cmd.Flags().GetString("dir")

		if operation == "" {
			return eris.Errorf("--operation is required (one of: %s)", strings.Join(schema.Operations(), ", "))
		}
		callMeta, err := parseMeta(metaPairs)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ing := ingest.New(st)

		if dir != "" {
			if len(args) > 0 {
				return eris.New("pass either a file argument or --dir, not both")
			}
			return ingestDir(cmd, ing, dir, operation, callMeta)
		}

		if len(args) == 0 {
			return eris.New("a response file is required (or '-' for stdin, or --dir)")
		}
		raw, err := readResponse(args[0])
		if err != nil {
			return err
		}

		outcome, err := ing.ProcessAndStore(ctx, raw, operation, callMeta)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		return printJSON(cmd.OutOrStdout(), outcome)
	},
}

// ingestDir processes every .json file in dir concurrently. Each file is
// its own batch; one bad file does not stop the others.
func ingestDir(cmd *cobra.Command, ing *ingest.Ingestor, dir, operation string, callMeta model.CallMetadata) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return eris.Wrap(err, "list responses")
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No .json files found.")
		return nil
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Ingest.MaxConcurrentFiles)

	outcomes := make([]*model.BatchOutcome, len(paths))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			raw, err := readResponse(path)
			if err != nil {
				return err
			}
			out, err := ing.ProcessAndStore(ctx, raw, operation, metaWithSource(callMeta, path))
			if err != nil {
				return eris.Wrapf(err, "ingest %s", path)
			}
			outcomes[i] = out
			zap.L().Info("file ingested",
				zap.String("path", path),
				zap.String("batch_id", out.BatchID),
				zap.String("status", string(out.Status)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outcomes)
}

// metaWithSource copies callMeta and records which file the response
// came from.
func metaWithSource(callMeta model.CallMetadata, path string) model.CallMetadata {
	out := model.CallMetadata{"source_file": filepath.Base(path)}
	for k, v := range callMeta {
		out[k] = v
	}
	return out
}

func readResponse(path string) (json.RawMessage, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, eris.Wrapf(err, "read %s", path)
}

// parseMeta turns repeated key=value flags into call metadata. Returns
// nil when no pairs were given so unset metadata stays unset downstream.
func parseMeta(pairs []string) (model.CallMetadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := model.CallMetadata{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, eris.Errorf("invalid --meta %q, expected key=value", p)
		}
		meta[k] = v
	}
	return meta, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ingestCmd.Flags().String("operation", "", "operation that produced the response (e.g. get_user_info)")
	ingestCmd.Flags().StringArray("meta", nil, "call metadata as key=value (repeatable)")
	ingestCmd.Flags().String("dir", "", "ingest every .json file in this directory")

	rootCmd.AddCommand(ingestCmd)
}
