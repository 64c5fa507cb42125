// Package config resolves run options from CLI flags, GitHub Actions inputs,
// environment variables, an optional .env file and an optional YAML file.
//
// Precedence, highest first:
//
//	flag > INPUT_<NAME> > env var > .env file > YAML file > default
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/jira"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Option names, shared by flags, action inputs and YAML keys.
const (
	OptGitHubToken    = "github-token"
	OptGitLabToken    = "gitlab-token"
	OptRepository     = "repository"
	OptServerURL      = "server-url"
	OptJiraHost       = "jira-host"
	OptJiraProtocol   = "jira-protocol"
	OptJiraUsername   = "jira-username"
	OptJiraPassword   = "jira-password"
	OptJiraAPIVersion = "jira-apiVersion"
	OptJiraStrictSSL  = "jira-strictSSL"
	OptTicketRegex    = "ticket-regex"
	OptTicketPrefix   = "ticket-prefix"
	OptDryRun         = "dry-run"
	OptSlackToken     = "slack-token"
	OptSlackChannel   = "slack-channel"
	OptLogLevel       = "log-level"

	OptWebhookAddr         = "webhook-addr"
	OptGitHubWebhookSecret = "github-webhook-secret"
	OptGitLabWebhookSecret = "gitlab-webhook-secret"
)

type Option struct {
	Name    string
	Env     string
	Default string
	Usage   string
}

// Options lists every recognised option in the order they are documented.
var Options = []Option{
	{OptGitHubToken, "GITHUB_TOKEN", "", "GitHub token used to list pull requests and set labels"},
	{OptGitLabToken, "GITLAB_TOKEN", "", "GitLab token, when the repository lives on GitLab"},
	{OptRepository, "GITHUB_REPOSITORY", "", "repository as owner/repo or full URL"},
	{OptServerURL, "GITHUB_SERVER_URL", "https://github.com", "server joined to an owner/repo repository"},
	{OptJiraHost, "JIRA_HOST", "", "Jira host, e.g. acme.atlassian.net"},
	{OptJiraProtocol, "JIRA_PROTOCOL", "https", "Jira protocol"},
	{OptJiraUsername, "JIRA_USERNAME", "", "Jira user"},
	{OptJiraPassword, "JIRA_PASSWORD", "", "Jira password or API token"},
	{OptJiraAPIVersion, "JIRA_API_VERSION", "2", "Jira REST API version"},
	{OptJiraStrictSSL, "JIRA_STRICT_SSL", "true", "verify the Jira TLS certificate"},
	{OptTicketRegex, "TICKET_REGEX", "", "pattern matching a ticket key in the PR title or body"},
	{OptTicketPrefix, "TICKET_PREFIX", "jira", "label namespace"},
	{OptDryRun, "DRY_RUN", "false", "log label changes without writing them"},
	{OptSlackToken, "SLACK_BOT_TOKEN", "", "Slack bot token for the run summary"},
	{OptSlackChannel, "SLACK_CHANNEL", "", "Slack channel ID for the run summary"},
	{OptLogLevel, "LOG_LEVEL", "info", "log level: debug, info, warn or error"},
	{OptWebhookAddr, "WEBHOOK_ADDR", ":8080", "listen address for serve"},
	{OptGitHubWebhookSecret, "GITHUB_WEBHOOK_SECRET", "", "secret verifying GitHub webhook signatures"},
	{OptGitLabWebhookSecret, "GITLAB_WEBHOOK_SECRET", "", "secret verifying GitLab webhook tokens"},
}

type Config struct {
	GitHubToken string
	GitLabToken string
	Repository  string
	ServerURL   string

	Jira jira.Config

	TicketRegex  string
	TicketPrefix string
	DryRun       bool

	SlackToken   string
	SlackChannel string

	LogLevel string

	WebhookAddr         string
	GitHubWebhookSecret string
	GitLabWebhookSecret string
}

// RepoURL is the repository resolved against the server URL.
func (c *Config) RepoURL() string {
	return git.ResolveRepository(c.Repository, c.ServerURL)
}

// Level maps LogLevel onto slog, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

type LoadOptions struct {
	// Flags holds only the flags set on the command line.
	Flags map[string]string
	// ConfigPath is an optional YAML file; when set it must exist.
	ConfigPath string
	// EnvFile is an optional dotenv file; a missing file is ignored.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// InputEnv is the variable GitHub Actions uses for an action input.
func InputEnv(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}

func Load(opts LoadOptions) (*Config, error) {
	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		m, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		if m != nil {
			dotenv = m
		}
	}

	file, err := loadFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	get := func(o Option) string {
		if v, ok := opts.Flags[o.Name]; ok {
			return v
		}
		if v, ok := lookupEnv(InputEnv(o.Name)); ok && v != "" {
			return v
		}
		if v, ok := lookupEnv(o.Env); ok && v != "" {
			return v
		}
		if v, ok := dotenv[o.Env]; ok && v != "" {
			return v
		}
		if v, ok := file[o.Name]; ok && v != "" {
			return v
		}
		return o.Default
	}

	values := make(map[string]string, len(Options))
	for _, o := range Options {
		v := get(o)
		// The pattern is used verbatim; surrounding spaces may be significant.
		if o.Name != OptTicketRegex {
			v = strings.TrimSpace(v)
		}
		values[o.Name] = v
	}

	var errs []error
	parseBool := func(name string) bool {
		b, err := strconv.ParseBool(values[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", name, values[name]))
		}
		return b
	}

	cfg := &Config{
		GitHubToken: values[OptGitHubToken],
		GitLabToken: values[OptGitLabToken],
		Repository:  values[OptRepository],
		ServerURL:   values[OptServerURL],
		Jira: jira.Config{
			Host:       values[OptJiraHost],
			Protocol:   values[OptJiraProtocol],
			Username:   values[OptJiraUsername],
			Password:   values[OptJiraPassword],
			APIVersion: values[OptJiraAPIVersion],
			StrictSSL:  parseBool(OptJiraStrictSSL),
		},
		TicketRegex:  values[OptTicketRegex],
		TicketPrefix: values[OptTicketPrefix],
		DryRun:       parseBool(OptDryRun),
		SlackToken:   values[OptSlackToken],
		SlackChannel: values[OptSlackChannel],
		LogLevel:     strings.ToLower(values[OptLogLevel]),

		WebhookAddr:         values[OptWebhookAddr],
		GitHubWebhookSecret: values[OptGitHubWebhookSecret],
		GitLabWebhookSecret: values[OptGitLabWebhookSecret],
	}
	if cfg.TicketPrefix == "" {
		cfg.TicketPrefix = "jira"
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Repository == "" {
		errs = append(errs, fmt.Errorf("%s is required", OptRepository))
	}
	if c.Jira.Host == "" {
		errs = append(errs, fmt.Errorf("%s is required", OptJiraHost))
	}
	if strings.TrimSpace(c.TicketRegex) == "" {
		errs = append(errs, fmt.Errorf("%s is required", OptTicketRegex))
	}
	if (c.SlackToken == "") != (c.SlackChannel == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", OptSlackToken, OptSlackChannel))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%s: unknown level %q", OptLogLevel, c.LogLevel))
	}
	return errs
}

// loadFile reads the YAML config file into option name -> value.
func loadFile(path string) (map[string]string, error) {
	out := map[string]string{}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	known := make(map[string]bool, len(Options))
	for _, o := range Options {
		known[o.Name] = true
	}
	for k, v := range raw {
		if !known[k] {
			return nil, fmt.Errorf("config file %s: unknown option %q", path, k)
		}
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}
