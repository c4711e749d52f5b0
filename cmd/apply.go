package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/store"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Stream entity snapshots from stdin through the save queues",
	Long: `Read a stream of JSON snapshots from stdin and queue each one as the new state
of its entity. Snapshots of the same entity that arrive within the debounce
window are coalesced; a snapshot equal to what is already saved is dropped.

Blocks and patterns are identified by their "name" field. Settings snapshots
have no name.`,
	Example: `  jq -c '.[]' edits.json | bam apply --kind block
  bam apply --kind settings < settings.json`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, _ := cmd.Flags().GetString("kind")
		kind := models.EntityKind(kindFlag)

		sess, err := openSession()
		if err != nil {
			return fail(cmd, err)
		}
		stats, err := applyStream(cmd.Context(), sess, kind, os.Stdin)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(stats)
		}
		output.Success("%d snapshots applied to %d %s entities", stats.Snapshots, len(stats.Entities), kind)
		return nil
	},
}

type applyStats struct {
	Snapshots int      `json:"snapshots"`
	Entities  []string `json:"entities"`
}

// applyStream decodes snapshots from r and feeds them to the store until EOF,
// then flushes and waits for every save. The session is closed on return.
func applyStream(ctx context.Context, sess *session, kind models.EntityKind, r io.Reader) (applyStats, error) {
	var stats applyStats
	var apply func(json.RawMessage) (string, error)

	switch kind {
	case models.KindSettings:
		apply = func(raw json.RawMessage) (string, error) {
			return store.SettingsName, replaceWith(ctx, sess.store.Settings, raw)
		}
	case models.KindBlock:
		apply = func(raw json.RawMessage) (string, error) {
			return replaceNamed(ctx, sess.store.Blocks, raw, func(b models.Block) string { return b.Name })
		}
	case models.KindPattern:
		apply = func(raw json.RawMessage) (string, error) {
			return replaceNamed(ctx, sess.store.Patterns, raw, func(p models.Pattern) string { return p.Name })
		}
	default:
		sess.close()
		return stats, usageErr("unknown kind %q (settings, block, pattern)", kind)
	}

	seen := make(map[string]bool)
	dec := json.NewDecoder(r)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			sess.close()
			return stats, fmt.Errorf("snapshot %d: %w", stats.Snapshots+1, err)
		}
		name, err := apply(raw)
		if err != nil {
			sess.close()
			return stats, fmt.Errorf("snapshot %d: %w", stats.Snapshots+1, err)
		}
		stats.Snapshots++
		if !seen[name] {
			seen[name] = true
			stats.Entities = append(stats.Entities, name)
		}
	}

	return stats, sess.finish(ctx)
}

// replaceWith queues v as the whole new state of ent, loading it first
func replaceWith[T store.Cloner[T]](ctx context.Context, ent *store.Entity[T], raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if !ent.Loaded() {
		if err := ent.Load(ctx); err != nil {
			return err
		}
	}
	return ent.Update(func(T) (T, error) { return v, nil })
}

func replaceNamed[T store.Cloner[T]](ctx context.Context, c *store.Collection[T], raw json.RawMessage, name func(T) string) (string, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	n := name(v)
	if n == "" {
		return "", usageErr("snapshot has no name")
	}
	return n, replaceWith(ctx, c.Get(n), raw)
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("kind", string(models.KindBlock), "Entity kind: settings, block or pattern")
	applyCmd.Flags().AddFlagSet(jsonFlags())
}
