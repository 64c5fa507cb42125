package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jadenj13/jira-labels/internals/labeler"
	"github.com/jadenj13/jira-labels/internals/webhook"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Relabel on pull request webhooks instead of running once",
		Long: `serve listens for GitHub pull_request and GitLab merge_request webhooks
of the configured repository and runs a labelling pass for each one.
Passes never overlap; events arriving while a pass is queued are folded
into it. One pass runs at start-up. --timeout applies to each pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}
			log := newLogger(cmd.OutOrStdout(), cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			worker, info, err := newWorker(ctx, cfg, log)
			if err != nil {
				return err
			}

			runner := timedRunner{worker: worker, timeout: g.timeout}
			srv := webhook.NewServer(runner, info, cfg.GitHubWebhookSecret, cfg.GitLabWebhookSecret, log)

			httpSrv := &http.Server{
				Addr:         cfg.WebhookAddr,
				Handler:      srv.Handler(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}

			go srv.Loop(ctx)
			srv.Trigger()

			errCh := make(chan error, 1)
			go func() {
				log.Info("webhook listening", "addr", cfg.WebhookAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("webhook server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutCtx)
		},
	}
}

// timedRunner bounds each pass by the --timeout flag.
type timedRunner struct {
	worker  *labeler.Worker
	timeout time.Duration
}

func (r timedRunner) Run(ctx context.Context) (labeler.Summary, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.worker.Run(ctx)
}
