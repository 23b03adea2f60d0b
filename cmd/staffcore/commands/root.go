// Package commands implements the staffcore CLI.
package commands

import (
	"context"
	"fmt"
	"staffcore/internal/config"
	"staffcore/internal/core"
	"staffcore/internal/logging"
	"staffcore/internal/printer"
	"staffcore/pkg/domain"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
)

var versionString = "dev"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "staffcore",
		Short: "Staffcore - talent allocation and availability engine",
		Long: `Staffcore tracks which talent is allocated to which project on which days.

It detects overlapping allocations, answers availability questions and keeps
projects, talents and areas consistent when records are deleted.`,
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to staffcore.yml (default ./staffcore.yml when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newConflictsCmd(opts),
		newAvailableCmd(opts),
		newCalendarCmd(opts),
		newProjectCmd(opts),
		newAreaCmd(opts),
	)
	return cmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// session is the configured service used by one command invocation.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	store  core.PersistentStore
	svc    *core.Service
	// run in reverse order before the store closes
	closers []func() error
}

// openSession loads configuration, builds the logger and opens the store.
// Store opening is retried with backoff since postgres or s3 may still be
// starting next to us. extra, when set, contributes service options once
// the logger and store exist.
func openSession(ctx context.Context, opts *rootOptions, extra func(*session) ([]core.Option, error)) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), []string{
			"Check staffcore.yml and STAFFCORE_* environment variables",
		})
	}
	logger, err := logging.New().
		FromPath(cfg.Log.File).
		Level(cfg.Log.Level).
		Format(cfg.Log.Format).
		Make()
	if err != nil {
		return nil, printer.Error("invalid log settings", err.Error(), nil)
	}

	engine := core.NewPolicyRulesEngine(cfg.ConflictPolicy())
	var store core.PersistentStore
	open := func() error {
		s, err := core.OpenPersistentStore(ctx, cfg.StorageConfig(), engine)
		if err != nil {
			return err
		}
		store = s
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second
	notify := func(err error, wait time.Duration) {
		logger.Warn("open store failed, retrying", "driver", cfg.Storage.Driver, "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(open, backoff.WithContext(policy, ctx), notify); err != nil {
		_ = logger.Close()
		return nil, printer.ErrorWithContext("cannot open store", err.Error(),
			map[string]string{"Driver": cfg.Storage.Driver},
			[]string{"Verify the storage section of staffcore.yml"})
	}

	s := &session{cfg: cfg, logger: logger, store: store}
	svcOpts := []core.Option{core.WithLogger(logger)}
	if extra != nil {
		more, err := extra(s)
		if err != nil {
			s.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, more...)
	}
	s.svc = core.NewService(store, svcOpts...)
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close", "error", err)
		}
	}
	if err := core.CloseStore(s.store); err != nil {
		s.logger.Warn("close store", "error", err)
	}
	_ = s.logger.Close()
}

// parseDateFlag parses a YYYY-MM-DD flag value, defaulting to today.
func parseDateFlag(name, value string) (core.Date, error) {
	if value == "" {
		return domain.DateOf(time.Now()), nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return core.Date{}, printer.Error(fmt.Sprintf("invalid --%s", name), err.Error(), []string{"Dates use the form YYYY-MM-DD"})
	}
	return d, nil
}

// reportServiceError turns engine errors into formatted CLI errors.
func reportServiceError(action string, err error) error {
	var rv core.RuleViolationError
	switch {
	case core.AsRuleViolation(err, &rv):
		details := map[string]string{}
		for _, v := range rv.Result.Violations {
			details[v.Rule] = v.Message
		}
		return printer.ErrorWithContext(action+" blocked", "The change violates a blocking rule.", details, nil)
	default:
		return printer.Error(action+" failed", err.Error(), nil)
	}
}
