package cmd

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/dateparse"
	"github.com/marcus/bam/internal/db"
	"github.com/marcus/bam/internal/output"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"runs"},
	Short:   "Show past reconcile runs",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := openHistory()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer history.Close()

		since, err := sinceFlag(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := history.ListRuns(limit)
		if err != nil {
			output.Error("failed to list runs: %v", err)
			return err
		}
		runs = slices.DeleteFunc(runs, func(r db.Run) bool { return r.StartedAt.Before(since) })
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(runs)
		}
		if len(runs) == 0 {
			output.Info("No reconcile runs recorded")
			return nil
		}
		for _, r := range runs {
			fmt.Println(formatRun(r))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the writes of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := openHistory()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer history.Close()

		items, err := history.GetRunItems(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(items)
		}
		if len(items) == 0 {
			output.Info("No writes recorded for run %s", args[0])
			return nil
		}
		for _, it := range items {
			line := fmt.Sprintf("%s %-7s %s", output.Mark(it.OK), it.Op, it.Block)
			if it.Error != "" {
				line += "  " + it.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historySavesCmd = &cobra.Command{
	Use:   "saves",
	Short: "Show recent entity save attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := openHistory()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer history.Close()

		since, err := sinceFlag(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		saves, err := history.ListSaves(limit)
		if err != nil {
			output.Error("failed to list saves: %v", err)
			return err
		}
		saves = slices.DeleteFunc(saves, func(s db.SaveEntry) bool { return s.Timestamp.Before(since) })
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(saves)
		}
		if len(saves) == 0 {
			output.Info("No saves recorded")
			return nil
		}
		for _, s := range saves {
			line := fmt.Sprintf("%s %-8s %-10s %-32s #%d", output.Mark(s.OK), output.FormatTimeAgo(s.Timestamp), s.Kind, s.Name, s.Attempt)
			if s.Error != "" {
				line += "  " + s.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

// sinceFlag parses --since; the zero time keeps everything
func sinceFlag(cmd *cobra.Command) (time.Time, error) {
	v, _ := cmd.Flags().GetString("since")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.Since(v)
	if err != nil {
		return time.Time{}, usageErr("--since: %v", err)
	}
	return t, nil
}

func formatRun(r db.Run) string {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	return fmt.Sprintf("%s  %-8s  %s%s  +%d ~%d -%d  failed %d  unchanged %d",
		r.ID, output.FormatTimeAgo(r.StartedAt), r.Phase, mode,
		r.Created, r.Updated, r.Deleted, r.Failed, r.Unchanged)
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySavesCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().AddFlagSet(jsonFlags())
	historyCmd.PersistentFlags().IntP("limit", "n", 20, "Maximum entries to show")
	historyCmd.PersistentFlags().String("since", "", "Only entries since a date (2026-03-01, 3d, yesterday, monday)")
}
