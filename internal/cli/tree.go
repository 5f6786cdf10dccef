package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mindtree/internal/config"
	"mindtree/internal/export"
	"mindtree/internal/logger"
	"mindtree/internal/tree"
)

// withRuntime loads config, wires the service and runs fn. CLI logs go to
// stderr so stdout stays clean for piping.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewLoggerWithWriters(cfg.Debug, cmd.ErrOrStderr())
	defer func() { _ = log.Sync() }()
	if !cfg.Debug {
		log = log.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	return runWith(cmd.Context(), cfg, log, fn)
}

func runWith(ctx context.Context, cfg config.Config, log *zap.Logger, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(ctx, rt)
}

func newTreeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the current tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if parsed != export.FormatMarkdown && parsed != export.FormatJSON {
				return fmt.Errorf("tree prints markdown or json, not %s", parsed)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				result, err := rt.service.Export(ctx, parsed)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(result.Data)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format: markdown or json")
	return cmd
}

func newOrphansCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List records the tree cannot place",
		Long:  "List records whose parent is missing or that only hang off a stored cycle. They are hidden from the tree.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				orphans, err := rt.service.Orphans(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSONTo(out, orphans)
				}
				if len(orphans) == 0 {
					fmt.Fprintln(out, "No orphans.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPARENT\tTEXT")
				for _, node := range orphans {
					fmt.Fprintf(w, "%s\t%s\t%s\n", node.ID, node.Parent(), node.Text)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Purge or reattach records the tree cannot place",
		Long: `Repair unplaced records.
  --mode purge     delete every unplaced record
  --mode reattach  make orphans roots and break stored cycles`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := tree.ParseReconcileMode(mode)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				result, err := rt.service.Reconcile(ctx, parsed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d purged, %d reattached\n", result.Mode, len(result.Purged), len(result.Reattached))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "purge or reattach")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func writeJSONTo(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
