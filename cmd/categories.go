package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"cats"},
	Short:   "List block and pattern categories",
	GroupID: "access",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return fail(cmd, err)
		}
		client := newClient(s)

		blockCats, err := client.GetBlockCategories(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		patternCats, err := client.ListPatternCategories(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(map[string]any{
				"blocks":   blockCats,
				"patterns": patternCats,
			})
		}

		fmt.Print(output.SectionHeader("block categories"))
		for _, c := range blockCats {
			fmt.Printf("  %-20s %s\n", c.Slug, c.Title)
		}
		fmt.Print(output.SectionHeader("pattern categories"))
		for _, c := range patternCats {
			fmt.Printf("  %-20s %s\n", c.Name, c.Label)
		}
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <slug> <title>",
	Short: "Add or retitle a block category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateCategories(cmd, func(cats []models.BlockCategory) ([]models.BlockCategory, error) {
			return upsertCategory(cats, models.BlockCategory{Slug: args[0], Title: args[1]}), nil
		})
	},
}

var categoriesRemoveCmd = &cobra.Command{
	Use:     "remove <slug>",
	Aliases: []string{"rm"},
	Short:   "Remove a block category",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateCategories(cmd, func(cats []models.BlockCategory) ([]models.BlockCategory, error) {
			out := slices.DeleteFunc(slices.Clone(cats), func(c models.BlockCategory) bool { return c.Slug == args[0] })
			if len(out) == len(cats) {
				return nil, usageErr("no block category %q", args[0])
			}
			return out, nil
		})
	},
}

func updateCategories(cmd *cobra.Command, fn func([]models.BlockCategory) ([]models.BlockCategory, error)) error {
	s, err := resolveSettings()
	if err != nil {
		return fail(cmd, err)
	}
	client := newClient(s)
	cats, err := client.GetBlockCategories(cmd.Context())
	if err != nil {
		return fail(cmd, err)
	}
	next, err := fn(cats)
	if err != nil {
		return fail(cmd, err)
	}
	saved, err := client.UpdateBlockCategories(cmd.Context(), next)
	if err != nil {
		return fail(cmd, err)
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return output.JSON(saved)
	}
	output.Success("%d block categories saved", len(saved))
	return nil
}

// upsertCategory replaces the category with the same slug or appends c
func upsertCategory(cats []models.BlockCategory, c models.BlockCategory) []models.BlockCategory {
	out := slices.Clone(cats)
	for i := range out {
		if out[i].Slug == c.Slug {
			c.Icon = out[i].Icon
			out[i] = c
			return out
		}
	}
	return append(out, c)
}

func init() {
	categoriesCmd.AddCommand(categoriesAddCmd)
	categoriesCmd.AddCommand(categoriesRemoveCmd)
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.PersistentFlags().AddFlagSet(jsonFlags())
}
