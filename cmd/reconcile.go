package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/db"
	"github.com/marcus/bam/internal/editor"
	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/reconcile"
	"github.com/marcus/bam/internal/wpclient"
)

var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	Aliases: []string{"sync"},
	Short:   "Bring the stored block list in line with the editor registry",
	Long: `Compare the blocks stored by the plugin with the live editor registry, then
create missing blocks, update changed ones and delete blocks that no longer exist.
Writes go out in batches; a failed block is reported and the rest continue.

The registry comes from a JSON or YAML export (--editor-file) or from the site's
/wp/v2/block-types endpoint (--rest).`,
	Example: `  bam reconcile --rest --dry-run
  bam reconcile --editor-file blocks.yaml`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		client := newClient(s)

		opts := reconcileOptions{BatchSize: s.BatchSize}
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.DefaultAccess, _ = cmd.Flags().GetBool("default-access")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
			opts.BatchSize = n
		}

		file, _ := cmd.Flags().GetString("editor-file")
		if file != "" {
			opts.Registry = editor.FileRegistry{Path: file}
		} else {
			opts.Registry = editor.RESTRegistry{Client: client}
		}
		if !jsonOutput {
			opts.OnProgress = func(p reconcile.Progress) {
				fmt.Fprintf(os.Stderr, "\r\033[K%s", output.FormatProgress(p))
				if p.Phase == reconcile.PhaseDone {
					fmt.Fprintln(os.Stderr)
				}
			}
		}

		history, err := openHistory()
		if err != nil {
			slog.Warn("history unavailable", "err", err)
		} else {
			defer history.Close()
		}

		res, err := runReconcile(cmd.Context(), client, s.SiteURL, opts, history)
		if res == nil {
			return fail(cmd, err)
		}

		if jsonOutput {
			if jerr := output.JSON(reconcileJSON(res)); jerr != nil {
				return jerr
			}
		} else {
			report := output.ReconcileReport(res)
			if rendered, rerr := output.RenderMarkdown(report); rerr == nil {
				fmt.Print(rendered)
			} else {
				fmt.Println(report)
			}
		}
		if err == nil {
			err = res.Err()
		}
		if err != nil && !jsonOutput {
			output.Error("%v", err)
		}
		return err
	},
}

type reconcileOptions struct {
	Registry      editor.Registry
	BatchSize     int
	DryRun        bool
	DefaultAccess bool
	OnProgress    func(reconcile.Progress)
}

// runReconcile runs one engine pass and records it in history when one is
// given. A nil result means nothing was attempted.
func runReconcile(ctx context.Context, client *wpclient.Client, site string, opts reconcileOptions, history *db.DB) (*reconcile.Result, error) {
	engine := &reconcile.Engine{
		Remote:     client,
		Registry:   opts.Registry,
		Batch:      reconcile.Batcher{Size: opts.BatchSize},
		DryRun:     opts.DryRun,
		Logger:     slog.Default(),
		OnProgress: opts.OnProgress,
	}
	if opts.DefaultAccess {
		settings, err := client.GetSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch settings: %w", err)
		}
		engine.DefaultAccess = settings.NewAccess()
	}

	res, err := engine.Run(ctx)
	if res == nil {
		return nil, err
	}
	if history != nil {
		if herr := history.RecordRun(ctx, site, res); herr != nil {
			slog.Warn("record reconcile run", "run", res.RunID, "err", herr)
		}
	}
	return res, err
}

// reconcileJSON flattens a result for --json; errors become strings
func reconcileJSON(res *reconcile.Result) map[string]any {
	failures := make([]map[string]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, map[string]string{
			"op":    string(f.Op),
			"block": f.Name,
			"error": errorText(f.Err),
		})
	}
	return map[string]any{
		"run_id":    res.RunID,
		"dry_run":   res.DryRun,
		"phase":     res.Progress.Phase,
		"create":    names(res.Diff.Create),
		"update":    updateNames(res.Diff.Update),
		"delete":    res.Diff.Delete,
		"unchanged": len(res.Diff.Unchanged),
		"created":   names(res.Created),
		"updated":   names(res.Updated),
		"deleted":   res.Deleted,
		"failures":  failures,
		"blocks":    res.Display,
	}
}

func names(blocks []models.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name
	}
	return out
}

func updateNames(updates []models.BlockUpdate) []string {
	out := make([]string, len(updates))
	for i, u := range updates {
		out[i] = u.Name
	}
	return out
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *wpclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("editor-file", "", "Registry export to reconcile against (.json, .yaml)")
	reconcileCmd.Flags().Bool("rest", false, "Read the registry from /wp/v2/block-types")
	reconcileCmd.Flags().Bool("dry-run", false, "Show the diff without writing")
	reconcileCmd.Flags().Bool("default-access", true, "Give new blocks the settings' default access matrix")
	reconcileCmd.Flags().Int("batch-size", 0, "Blocks written per batch (default from config)")
	reconcileCmd.Flags().AddFlagSet(jsonFlags())

	reconcileCmd.MarkFlagsMutuallyExclusive("editor-file", "rest")
	reconcileCmd.MarkFlagsOneRequired("editor-file", "rest")
}
