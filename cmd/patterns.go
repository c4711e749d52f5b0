package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/store"
)

var patternsCmd = &cobra.Command{
	Use:     "patterns",
	Aliases: []string{"pattern", "p"},
	Short:   "List patterns and change their access",
	GroupID: "access",
}

var patternsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List managed patterns",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		patterns, err := newClient(s).ListPatterns(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(patterns)
		}
		if len(patterns) == 0 {
			output.Info("No patterns (is manage_patterns on?)")
			return nil
		}
		for _, p := range patterns {
			fmt.Println(output.FormatPatternShort(p))
		}
		return nil
	},
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		p, err := newClient(s).GetPattern(cmd.Context(), args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(p)
		}
		fmt.Println(output.FormatPatternShort(*p))
		fmt.Print(output.SectionHeader("access"))
		fmt.Println(output.IndentString(output.FormatAccess(p.Access), 2))
		return nil
	},
}

var patternsAccessCmd = &cobra.Command{
	Use:     "access <name> <cell>=on|off...",
	Short:   "Allow or deny a pattern per post type and user group",
	Example: `  bam patterns access theme/hero post/subscriber=off`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseEach(args[1:], parseAccess)
		if err != nil {
			return fail(cmd, err)
		}
		sess, err := openSession()
		if err != nil {
			return fail(cmd, err)
		}
		saved, err := editPattern(cmd.Context(), sess, args[0], edits)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(saved)
		}
		for _, e := range edits {
			output.Success("%s: %s", args[0], e)
		}
		return nil
	},
}

func editPattern(ctx context.Context, sess *session, name string, edits []store.Edit) (models.Pattern, error) {
	ent := sess.store.Patterns.Get(name)
	if err := ent.Load(ctx); err != nil {
		sess.close()
		return models.Pattern{}, err
	}
	for _, e := range edits {
		if err := sess.store.EditPattern(name, e); err != nil {
			sess.close()
			return models.Pattern{}, err
		}
	}
	if err := sess.finish(ctx); err != nil {
		return models.Pattern{}, err
	}
	return ent.Stored(), nil
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsShowCmd)
	patternsCmd.AddCommand(patternsAccessCmd)
	rootCmd.AddCommand(patternsCmd)

	patternsCmd.PersistentFlags().AddFlagSet(jsonFlags())
}
