package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/bam/internal/config"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/wpclient"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure the site and credentials",
	Long: `Stores the site URL and namespace in ~/.config/bam/config.json and the
application password in ~/.config/bam/auth.json (mode 0600).

Runs an interactive form when stdin is a terminal; otherwise every value must
come from flags.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cur, err := config.Load()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		in := initInput{
			URL:       firstFlag(cmd, "url", cur.Site.URL),
			Namespace: firstFlag(cmd, "namespace", cur.Site.Namespace),
			Username:  firstFlag(cmd, "user", cur.Site.Username),
		}
		in.Password, _ = cmd.Flags().GetString("password")
		if in.Namespace == "" {
			in.Namespace = wpclient.DefaultNamespace
		}

		noInput, _ := cmd.Flags().GetBool("no-input")
		if !noInput && term.IsTerminal(int(os.Stdin.Fd())) {
			if err := initForm(&in).Run(); err != nil {
				output.Error("%v", err)
				return err
			}
		}
		if err := in.validate(); err != nil {
			output.Error("%v", err)
			return err
		}

		if skip, _ := cmd.Flags().GetBool("skip-check"); !skip {
			if err := checkSite(cmd.Context(), in); err != nil {
				output.Error("cannot reach site: %v", err)
				return err
			}
		}

		if err := saveInit(cur, in); err != nil {
			output.Error("%v", err)
			return err
		}
		addToGitignore(filepath.Join(getBaseDir(), ".gitignore"))

		output.Success("Configured %s", in.URL)
		return nil
	},
}

type initInput struct {
	URL       string
	Namespace string
	Username  string
	Password  string
}

func (in initInput) validate() error {
	if err := validateSiteURL(in.URL); err != nil {
		return err
	}
	if in.Username == "" || in.Password == "" {
		return usageErr("username and application password are required")
	}
	return nil
}

func validateSiteURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return usageErr("site URL must look like https://example.com")
	}
	return nil
}

func initForm(in *initInput) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Site URL").
				Placeholder("https://example.com").
				Value(&in.URL).
				Validate(validateSiteURL),
			huh.NewInput().
				Title("Username").
				Value(&in.Username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Application password").
				Description("Users > Profile > Application Passwords").
				EchoMode(huh.EchoModePassword).
				Value(&in.Password),
			huh.NewInput().
				Title("REST namespace").
				Value(&in.Namespace),
		),
	).WithTheme(huh.ThemeDracula())
}

// checkSite reads the settings endpoint with the new credentials
func checkSite(ctx context.Context, in initInput) error {
	client := wpclient.New(in.URL, in.Namespace, in.Username, in.Password)
	_, err := client.GetSettings(ctx)
	return err
}

func saveInit(cur *config.Config, in initInput) error {
	next := *cur
	next.Site = config.SiteConfig{
		URL:       strings.TrimRight(in.URL, "/"),
		Namespace: in.Namespace,
		Username:  in.Username,
	}
	if next.Site.Namespace == wpclient.DefaultNamespace {
		next.Site.Namespace = ""
	}
	if err := config.Save(&next); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	auth := &config.Auth{SiteURL: next.Site.URL, Username: in.Username, AppPassword: in.Password}
	if err := config.SaveAuth(auth); err != nil {
		return fmt.Errorf("save auth: %w", err)
	}
	return nil
}

// firstFlag returns the flag value when set, otherwise def
func firstFlag(cmd *cobra.Command, name, def string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return def
}

// addToGitignore appends .bam/ when a .gitignore exists and lacks it
func addToGitignore(path string) {
	content, err := os.ReadFile(path)
	if err != nil || strings.Contains(string(content), ".bam/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		f.WriteString("\n")
	}
	f.WriteString(".bam/\n")
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("url", "", "Site URL")
	initCmd.Flags().String("user", "", "WordPress username")
	initCmd.Flags().String("password", "", "Application password")
	initCmd.Flags().Bool("no-input", false, "Never prompt")
	initCmd.Flags().Bool("skip-check", false, "Save without contacting the site")
}
