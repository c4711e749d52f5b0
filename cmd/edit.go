package cmd

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/config"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/pkg/monitor"
)

// drainTimeout bounds how long quitting waits for queued saves
const drainTimeout = 30 * time.Second

var editCmd = &cobra.Command{
	Use:     "edit",
	Aliases: []string{"tui"},
	Short:   "Edit block access interactively",
	Long: `Opens a terminal editor listing every block with its access row for one post
type. Toggles are debounced per block and saved in the background; quitting
saves anything still queued.`,
	GroupID: "access",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagDebug {
			// stderr output would tear the alternate screen
			slog.SetDefault(slog.New(slog.DiscardHandler))
		}

		sess, err := openSession()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		m := monitor.NewModel(cmd.Context(), sess.store, version)
		if dir, err := config.Dir(); err == nil {
			m.UpdateCacheDir = dir
		}
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			sess.close()
			output.Error("%v", err)
			return err
		}

		saving := len(sess.store.Blocks.Saving())
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := sess.finish(ctx); err != nil {
			output.Error("some changes were not saved: %v", err)
			return err
		}
		if saving > 0 {
			output.Success("saved %d blocks", saving)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
