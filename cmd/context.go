package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/bam/internal/config"
	"github.com/marcus/bam/internal/db"
	"github.com/marcus/bam/internal/delayed"
	"github.com/marcus/bam/internal/merge"
	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/output"
	"github.com/marcus/bam/internal/store"
	"github.com/marcus/bam/internal/wpclient"
)

// resolveSettings applies --site and --namespace on top of config.Resolve
func resolveSettings() (*config.Settings, error) {
	s, err := config.Resolve()
	if err != nil {
		return nil, err
	}
	if flagSite != "" {
		s.SiteURL = strings.TrimRight(flagSite, "/")
	}
	if flagNamespace != "" {
		s.Namespace = flagNamespace
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newClient(s *config.Settings) *wpclient.Client {
	return wpclient.New(s.SiteURL, s.Namespace, s.Username, s.AppPassword)
}

// queueConfig builds the delayed-queue settings for store entities
func queueConfig(s *config.Settings) delayed.Config {
	retry := delayed.DefaultRetryPolicy()
	retry.MaxAttempts = s.RetryAttempts
	retry.Retryable = wpclient.IsRetryable
	return delayed.Config{
		Delay:  s.Debounce,
		Retry:  retry,
		Logger: slog.Default(),
	}
}

// session is what a remote-editing command works with
type session struct {
	settings *config.Settings
	client   *wpclient.Client
	store    *store.Store
	history  *db.DB
}

// openSession resolves settings and builds a client and store. History is
// best effort: saves are still made when .bam/bam.db cannot be opened.
func openSession() (*session, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	sess := &session{settings: s, client: newClient(s)}

	var rec store.SaveRecorder
	if h, err := openHistory(); err != nil {
		slog.Warn("history unavailable", "err", err)
	} else {
		sess.history = h
		rec = h
	}
	sess.store = store.New(sess.client, queueConfig(s), rec)
	return sess, nil
}

// openHistory opens .bam/bam.db and tags its write lock with the running
// command, so a second bam process waiting on it can say who holds it.
func openHistory() (*db.DB, error) {
	h, err := db.Open(getBaseDir())
	if err != nil {
		return nil, err
	}
	h.SetCommand(commandPath)
	return h, nil
}

// finish flushes queued edits, waits for them and releases resources
func (s *session) finish(ctx context.Context) error {
	s.store.Flush()
	err := s.store.Wait(ctx)
	s.close()
	return err
}

func (s *session) close() {
	s.store.Close()
	if s.history != nil {
		s.history.Close()
	}
}

// jsonFlags returns a fresh flag set holding --json
func jsonFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("json", pflag.ContinueOnError)
	fs.Bool("json", false, "JSON output")
	return fs
}

// fail prints err in the format selected by --json and returns it
func fail(cmd *cobra.Command, err error) error {
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		output.JSONError(errorCode(err), err.Error())
		return err
	}
	output.Error("%v", err)
	return err
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, wpclient.ErrNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, wpclient.ErrUnauthorized), errors.Is(err, wpclient.ErrForbidden):
		return output.ErrCodeUnauthorized
	case errors.Is(err, wpclient.ErrInvalidPath), errors.Is(err, store.ErrUnknownField),
		errors.Is(err, models.ErrUnknownAccessKey), errors.Is(err, merge.ErrUnknownEntry),
		errors.Is(err, config.ErrNoSite), errors.Is(err, errUsage):
		return output.ErrCodeInvalidInput
	default:
		return output.ErrCodeNetworkError
	}
}

// errUsage marks malformed command arguments
var errUsage = errors.New("invalid argument")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
