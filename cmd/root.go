package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-gitcheck/pkg/check"
	"github.com/mattsolo1/grove-gitcheck/pkg/config"
	"github.com/mattsolo1/grove-gitcheck/pkg/discovery"
	"github.com/mattsolo1/grove-gitcheck/pkg/repo"
	"github.com/mattsolo1/grove-gitcheck/pkg/report"
)

var (
	ErrNoDirectories = errors.New("at least one DIRECTORY is required")
	ErrBadDirectory  = errors.New("directory does not exist")
	// ErrFindings is returned in strict mode when anything was reported.
	ErrFindings = errors.New("repositories need attention")
)

// ProviderFactory builds the status provider for a run.
type ProviderFactory func(cfg config.Config) (repo.Provider, error)

func execProvider(cfg config.Config) (repo.Provider, error) {
	return repo.NewExecProvider(cfg.Command, cfg.Timeout)
}

type rootOptions struct {
	verbosity      int
	recursive      bool
	quiet          bool
	workers        int
	timeout        time.Duration
	exclude        []string
	hideUnknown    bool
	strict         bool
	jsonOutput     bool
	color          string
	followSymlinks bool
	configPath     string
}

// NewRootCmd creates the gitcheck command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(execProvider)
}

func newRootCmd(newProvider ProviderFactory) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gitcheck [flags] DIRECTORY...",
		Short: "Report git repositories with uncommitted or unpushed changes",
		Long: `Check git working copies for uncommitted changes and branches that are
ahead of or behind their upstream. Only repositories that need attention are
printed; clean ones are silent.

Without --recursive every DIRECTORY is checked as a repository. With
--recursive every DIRECTORY is searched for repositories, without descending
into a repository once found.

Examples:
  gitcheck ~/src/project              # Check a single repository
  gitcheck -r ~/src                   # Find and check every repository under ~/src
  gitcheck -rq ~/src ~/work           # Only list the paths that need attention`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return ErrNoDirectories
			}
			return nil
		},
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args, newProvider)
		},
	}

	cmd.Flags().CountVarP(&opts.verbosity, "verbosity", "v", "Increase diagnostic logging on stderr (repeatable)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Search each DIRECTORY for repositories")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Print only the paths of repositories that need attention")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "Number of repositories checked concurrently (default 2x CPUs)")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", repo.DefaultTimeout, "Time limit for a single status command")
	cmd.Flags().StringArrayVarP(&opts.exclude, "exclude", "e", nil, "Glob of directories to skip while searching (repeatable)")
	cmd.Flags().BoolVar(&opts.hideUnknown, "hide-unknown", false, "Do not print repositories whose status could not be determined")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with status 1 when any repository is reported")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the report in JSON format")
	cmd.Flags().StringVar(&opts.color, "color", report.ColorAlways, "Styling of the report: always, auto or never")
	cmd.Flags().BoolVar(&opts.followSymlinks, "follow-symlinks", true, "Follow symlinked directories while searching")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")

	return cmd
}

func run(cmd *cobra.Command, opts *rootOptions, args []string, newProvider ProviderFactory) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.verbosity)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	dirs, err := resolveDirectories(args)
	if err != nil {
		return err
	}

	locator, err := discovery.NewLocator(discovery.Options{
		Marker:         cfg.Marker,
		Exclude:        cfg.Exclude,
		FollowSymlinks: cfg.FollowSymlinks,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	// Input is valid from here on; later failures are not usage mistakes.
	cmd.SilenceUsage = true

	provider, err := newProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create status provider: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"directories": len(dirs),
		"recursive":   opts.recursive,
	}).Debug("Locating repositories")

	repos, err := locator.Locate(ctx, dirs, opts.recursive)
	if err != nil {
		logger.WithError(err).Warn("Search interrupted, checking repositories found so far")
	}
	logger.WithField("count", len(repos)).Debug("Located repositories")

	runner := &check.Runner{
		Provider:   provider,
		Classifier: cfg.Classifier(),
		Workers:    cfg.Workers,
		Logger:     logger,
	}
	entries := runner.Run(ctx, repos)

	reporter := report.New(cmd.OutOrStdout(), report.Options{
		Quiet:       opts.quiet,
		ShowUnknown: cfg.ShowUnknown,
		JSON:        opts.jsonOutput,
		Color:       cfg.Color,
	})
	if err := reporter.Report(entries); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Debug(report.Summary(check.Summarize(entries)))

	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg.Strict && len(reporter.Visible(entries)) > 0 {
		return ErrFindings
	}
	return nil
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("color") {
		cfg.Color = strings.ToLower(opts.color)
	}
	if flags.Changed("follow-symlinks") {
		cfg.FollowSymlinks = opts.followSymlinks
	}
	if opts.hideUnknown {
		cfg.ShowUnknown = false
	}
	if opts.strict {
		cfg.Strict = true
	}
	cfg.Exclude = append(cfg.Exclude, opts.exclude...)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// resolveDirectories expands a leading ~ and makes every argument absolute.
// Every argument must exist.
func resolveDirectories(args []string) ([]string, error) {
	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := expandHome(arg)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadDirectory, arg)
		}
		dirs = append(dirs, abs)
	}
	return dirs, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	return exitCode(root.ExecuteContext(ctx), root.ErrOrStderr())
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFindings):
		return 1
	case errors.Is(err, context.Canceled):
		return 130
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}
