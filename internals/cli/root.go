// Package cli provides the command-line interface for jira-labels.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jadenj13/jira-labels/internals/config"
	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/jira"
	"github.com/jadenj13/jira-labels/internals/labeler"
	"github.com/jadenj13/jira-labels/internals/slack"
	"github.com/jadenj13/jira-labels/internals/ticket"
)

// runLabelerFunc is a function variable for the labelling pass, allowing it to be mocked in tests.
var runLabelerFunc = runLabeler

type globalFlags struct {
	configPath string
	envFile    string
	timeout    time.Duration
}

// NewRootCommand creates the root command. Running it without a subcommand
// performs one labelling pass.
func NewRootCommand(version string) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "jira-labels",
		Short: "Mirror Jira ticket status and labels onto open pull requests",
		Long: `jira-labels finds a Jira ticket key in the title or body of every open
pull request, looks all keys up in a single JQL search and replaces the
PR labels with a status label (jira:in_progress) and one mirror label per
ticket label (jira::label:urgent). Other labels are left alone.

Every option can also be set through the GitHub Actions input variable
(INPUT_<NAME>), a plain environment variable, a .env file or a YAML file.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			log := newLogger(cmd.OutOrStdout(), cfg)

			ctx, cancel := withTimeout(cmd.Context(), g.timeout)
			defer cancel()

			_, err = runLabelerFunc(ctx, cfg, log)
			return err
		},
	}

	flags := root.PersistentFlags()
	for _, o := range config.Options {
		if o.Name == config.OptDryRun {
			flags.Bool(o.Name, false, o.Usage)
			continue
		}
		usage := o.Usage
		if o.Env != "" {
			usage += " (env " + o.Env + ")"
		}
		flags.String(o.Name, o.Default, usage)
	}
	flags.StringVar(&g.configPath, "config", "", "YAML file with option defaults")
	flags.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded below real environment variables")
	flags.DurationVar(&g.timeout, "timeout", 5*time.Minute, "abort the run after this long (0 disables)")

	root.AddCommand(newCheckCommand(&g))
	root.AddCommand(newServeCommand(&g))
	return root
}

func newCheckCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify Jira credentials and the repository URL without touching labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), g.timeout)
			defer cancel()

			info, err := git.ParseRepoURL(cfg.RepoURL())
			if err != nil {
				return err
			}

			client, err := jira.NewClient(cfg.Jira)
			if err != nil {
				return err
			}
			name, err := client.CheckAuth(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Repository: %s/%s on %s (%s)\n", info.Owner, info.Repo, info.Host, info.Platform)
			fmt.Fprintf(out, "Jira:       %s as %s\n", client.BaseURL(), name)
			return nil
		},
	}
}

// loadConfig passes only the flags given on the command line, so that unset
// flags fall through to env, files and defaults.
func loadConfig(cmd *cobra.Command, g globalFlags) (*config.Config, error) {
	set := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	return config.Load(config.LoadOptions{
		Flags:      set,
		ConfigPath: g.configPath,
		EnvFile:    g.envFile,
	})
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func newWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) (*labeler.Worker, git.RepoInfo, error) {
	extractor, err := ticket.NewExtractor(cfg.TicketRegex)
	if err != nil {
		return nil, git.RepoInfo{}, err
	}

	host, info, err := git.NewFactory(cfg.GitHubToken, cfg.GitLabToken).HostFor(ctx, cfg.RepoURL())
	if err != nil {
		return nil, info, fmt.Errorf("repository %s: %w", cfg.RepoURL(), err)
	}

	tracker, err := jira.NewClient(cfg.Jira, jira.WithLogger(log))
	if err != nil {
		return nil, info, err
	}

	var notifier labeler.Notifier
	if cfg.SlackEnabled() {
		notifier = slack.NewNotifier(cfg.SlackToken, cfg.SlackChannel)
	}

	log.Info("labeler configured",
		"repo", info.Owner+"/"+info.Repo,
		"platform", info.Platform,
		"jira", tracker.BaseURL(),
		"pattern", extractor.String(),
		"prefix", cfg.TicketPrefix,
		"dry_run", cfg.DryRun,
	)

	worker := labeler.NewWorker(host, tracker, extractor, notifier, labeler.Options{
		Prefix: cfg.TicketPrefix,
		DryRun: cfg.DryRun,
	}, log)
	return worker, info, nil
}

func runLabeler(ctx context.Context, cfg *config.Config, log *slog.Logger) (labeler.Summary, error) {
	worker, _, err := newWorker(ctx, cfg, log)
	if err != nil {
		return labeler.Summary{}, err
	}
	return worker.Run(ctx)
}

// ActionError renders err as a GitHub Actions error workflow command.
func ActionError(err error) string {
	msg := err.Error()
	msg = strings.ReplaceAll(msg, "%", "%25")
	msg = strings.ReplaceAll(msg, "\r", "%0D")
	msg = strings.ReplaceAll(msg, "\n", "%0A")
	return "::error::" + msg
}
