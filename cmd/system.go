package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/bam/internal/config"
	"github.com/marcus/bam/internal/output"
	bamversion "github.com/marcus/bam/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Print(version)
			return nil
		}
		fmt.Printf("bam version %s\n", version)

		if check, _ := cmd.Flags().GetBool("check"); !check {
			return nil
		}
		if bamversion.IsDevelopmentVersion(version) {
			output.Info("development build, not checking for updates")
			return nil
		}
		res := bamversion.Check(cmd.Context(), version)
		switch {
		case res.Error != nil:
			output.Error("update check failed: %v", res.Error)
			return res.Error
		case res.HasUpdate:
			output.Warning("%s is available: %s", res.LatestVersion, res.UpdateURL)
			if c := bamversion.UpdateCommand(res.LatestVersion); c != "" {
				fmt.Println("  " + c)
			}
		default:
			output.Success("up to date")
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show the resolved configuration",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Resolve()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if flagSite != "" {
			s.SiteURL = flagSite
		}
		if flagNamespace != "" {
			s.Namespace = flagNamespace
		}
		password := ""
		if s.AppPassword != "" {
			password = "(set)"
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(map[string]any{
				"site_url":       s.SiteURL,
				"namespace":      s.Namespace,
				"username":       s.Username,
				"app_password":   password != "",
				"debounce":       s.Debounce.String(),
				"batch_size":     s.BatchSize,
				"retry_attempts": s.RetryAttempts,
			})
		}
		fmt.Printf("%-16s %s\n", "site", s.SiteURL)
		fmt.Printf("%-16s %s\n", "namespace", s.Namespace)
		fmt.Printf("%-16s %s\n", "username", s.Username)
		fmt.Printf("%-16s %s\n", "app password", password)
		fmt.Printf("%-16s %s\n", "debounce", s.Debounce)
		fmt.Printf("%-16s %d\n", "batch size", s.BatchSize)
		fmt.Printf("%-16s %d\n", "retry attempts", s.RetryAttempts)
		if err := s.Validate(); err != nil {
			output.Warning("%v", err)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the stored application password",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearAuth(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Credentials removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(logoutCmd)

	versionCmd.Flags().Bool("short", false, "Print only the version")
	versionCmd.Flags().Bool("check", false, "Check GitHub for a newer release")
	configCmd.Flags().AddFlagSet(jsonFlags())
}
