package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/input"
	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/store"
)

var blocksCmd = &cobra.Command{
	Use:     "blocks",
	Aliases: []string{"block", "b"},
	Short:   "List blocks and change their access, supports and styles",
	GroupID: "access",
}

var blocksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered blocks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		blocks, err := newClient(s).ListBlocks(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		category, _ := cmd.Flags().GetString("category")
		blocks = filterBlocks(blocks, category)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(blocks)
		}
		if len(blocks) == 0 {
			output.Info("No blocks")
			return nil
		}
		for _, b := range blocks {
			fmt.Println(output.FormatBlockShort(b))
		}
		return nil
	},
}

var blocksShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		b, err := newClient(s).GetBlock(cmd.Context(), args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(b)
		}
		fmt.Print(output.FormatBlockLong(*b))
		return nil
	},
}

var blocksAccessCmd = &cobra.Command{
	Use:   "access <name> <cell>=on|off...",
	Short: "Allow or deny a block per post type and user group",
	Example: `  bam blocks access core/table post/editor=off post/author=off
  bam blocks access core/quote page=on
  bam blocks access core/table @editor-cells.txt`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseEach(args[1:], parseAccess)
		if err != nil {
			return fail(cmd, err)
		}
		return runBlockEdits(cmd, args[0], edits)
	},
}

var blocksSupportCmd = &cobra.Command{
	Use:     "support <name> <support>=on|off...",
	Short:   "Enable or disable block supports",
	Example: `  bam blocks support core/group anchor=on align=off`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseEach(args[1:], func(a string) (store.Edit, error) {
			return parseToggle(store.FieldSupport, a)
		})
		if err != nil {
			return fail(cmd, err)
		}
		return runBlockEdits(cmd, args[0], edits)
	},
}

var blocksStyleDefaultCmd = &cobra.Command{
	Use:   "style-default <name> [style]",
	Short: "Choose the default style of a block",
	Long: `Choose the default style of a block. Without a style the default is cleared.
With --variation the default variation is set instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := store.FieldStyleDefault
		if v, _ := cmd.Flags().GetBool("variation"); v {
			kind = store.FieldVariationDefault
		}
		e := store.Edit{Kind: kind}
		if len(args) == 2 {
			e.Key = args[1]
		}
		return runBlockEdits(cmd, args[0], []store.Edit{e})
	},
}

var blocksEditCmd = &cobra.Command{
	Use:   "edit <name> <field> <arg>",
	Short: "Apply any single field edit to a block",
	Long: `Apply any single field edit to a block.

Fields: access, support, style-default, style-active, variation-default,
variation-active, category.`,
	Example: `  bam blocks edit core/button style-active outline=off
  bam blocks edit core/button category design`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := parseEdit(args[1], args[2:])
		if err != nil {
			return fail(cmd, err)
		}
		return runBlockEdits(cmd, args[0], []store.Edit{e})
	},
}

// parseEach parses every argument after expanding @file and - references
func parseEach(args []string, parse func(string) (store.Edit, error)) ([]store.Edit, error) {
	args, err := input.ExpandArgs(args, os.Stdin)
	if err != nil {
		return nil, err
	}
	edits := make([]store.Edit, 0, len(args))
	for _, a := range args {
		e, err := parse(a)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func runBlockEdits(cmd *cobra.Command, name string, edits []store.Edit) error {
	sess, err := openSession()
	if err != nil {
		return fail(cmd, err)
	}
	saved, err := editBlock(cmd.Context(), sess, name, edits)
	if err != nil {
		return fail(cmd, err)
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return output.JSON(saved)
	}
	for _, e := range edits {
		output.Success("%s: %s", name, e)
	}
	return nil
}

// editBlock loads one block, applies edits through its delayed queue and
// waits for the single coalesced save
func editBlock(ctx context.Context, sess *session, name string, edits []store.Edit) (models.Block, error) {
	ent := sess.store.Blocks.Get(name)
	if err := ent.Load(ctx); err != nil {
		sess.close()
		return models.Block{}, err
	}
	for _, e := range edits {
		if err := sess.store.EditBlock(name, e); err != nil {
			sess.close()
			return models.Block{}, err
		}
	}
	if err := sess.finish(ctx); err != nil {
		return models.Block{}, err
	}
	return ent.Stored(), nil
}

func filterBlocks(blocks []models.Block, category string) []models.Block {
	out := slices.Clone(blocks)
	if category != "" {
		out = slices.DeleteFunc(out, func(b models.Block) bool { return b.Category != category })
	}
	slices.SortFunc(out, func(a, b models.Block) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func init() {
	blocksCmd.AddCommand(blocksListCmd)
	blocksCmd.AddCommand(blocksShowCmd)
	blocksCmd.AddCommand(blocksAccessCmd)
	blocksCmd.AddCommand(blocksSupportCmd)
	blocksCmd.AddCommand(blocksStyleDefaultCmd)
	blocksCmd.AddCommand(blocksEditCmd)
	rootCmd.AddCommand(blocksCmd)

	blocksCmd.PersistentFlags().AddFlagSet(jsonFlags())
	blocksListCmd.Flags().StringP("category", "c", "", "Only blocks in this category")
	blocksStyleDefaultCmd.Flags().Bool("variation", false, "Set the default variation instead")
}
