package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Short:   "Show or change plugin settings",
	GroupID: "access",
	RunE:    runSettingsGet,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show plugin settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change plugin settings",
	Long: `Change plugin settings. Lists are comma separated, flags take on/off.

Keys: ` + strings.Join(settingKeys, ", "),
	Example: `  bam settings set post_types=post,page default_access=off
  bam settings set manage_patterns=on`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return fail(cmd, err)
		}
		saved, err := setSettings(cmd.Context(), sess, args)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(saved)
		}
		output.Success("settings saved")
		printSettings(saved, "")
		return nil
	},
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings()
	if err != nil {
		return fail(cmd, err)
	}
	settings, err := newClient(s).GetSettings(cmd.Context())
	if err != nil {
		return fail(cmd, err)
	}
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if key == "" {
			return output.JSON(settings)
		}
		v, ok := settingValue(*settings, key)
		if !ok {
			return fail(cmd, usageErr("unknown setting %q", key))
		}
		return output.JSON(map[string]any{key: v})
	}
	if key != "" {
		if _, ok := settingValue(*settings, key); !ok {
			return fail(cmd, usageErr("unknown setting %q", key))
		}
	}
	printSettings(*settings, key)
	return nil
}

// setSettings applies each key=value to the settings entity as separate
// edits; the queue folds them into one save.
func setSettings(ctx context.Context, sess *session, args []string) (models.Settings, error) {
	type assign struct{ key, value string }
	pairs := make([]assign, 0, len(args))
	for _, arg := range args {
		k, v, err := splitAssign(arg)
		if err != nil {
			sess.close()
			return models.Settings{}, err
		}
		pairs = append(pairs, assign{k, v})
	}

	ent := sess.store.Settings
	if err := ent.Load(ctx); err != nil {
		sess.close()
		return models.Settings{}, err
	}
	for _, p := range pairs {
		err := ent.Update(func(s models.Settings) (models.Settings, error) {
			return applySetting(s, p.key, p.value)
		})
		if err != nil {
			sess.close()
			return models.Settings{}, err
		}
	}
	if err := sess.finish(ctx); err != nil {
		return models.Settings{}, err
	}
	return ent.Stored(), nil
}

func settingValue(s models.Settings, key string) (any, bool) {
	switch key {
	case "post_types":
		return s.PostTypes, true
	case "user_groups":
		return s.UserGroups, true
	case "access_by_post_type":
		return s.AccessByPostType, true
	case "access_by_user_group":
		return s.AccessByUserGroup, true
	case "default_access":
		return s.DefaultAccess, true
	case "manage_patterns":
		return s.ManagePatterns, true
	}
	return nil, false
}

func printSettings(s models.Settings, only string) {
	for _, key := range settingKeys {
		if only != "" && key != only {
			continue
		}
		v, _ := settingValue(s, key)
		var text string
		switch v := v.(type) {
		case []string:
			text = strings.Join(v, ", ")
		case bool:
			text = output.Mark(v)
		}
		fmt.Printf("%-22s %s\n", key, text)
	}
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.PersistentFlags().AddFlagSet(jsonFlags())
}
