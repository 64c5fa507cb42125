// Package labeler runs one fetch, extract, resolve, reconcile and write pass
// over the open pull requests of a repository.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/jira"
	"github.com/jadenj13/jira-labels/internals/reconcile"
)

type TicketSearcher interface {
	Search(ctx context.Context, keys []string) (map[string]jira.Ticket, error)
}

type Extractor interface {
	Extract(title, body string) (string, bool)
}

type Notifier interface {
	NotifyRun(ctx context.Context, summary Summary) error
}

type Options struct {
	Prefix string
	DryRun bool
}

// Update is one pull request whose labels were (or in dry-run would be)
// replaced.
type Update struct {
	Number   int
	URL      string
	Ticket   string
	Labels   []string
	Previous []string
}

type Summary struct {
	RepoURL    string
	DryRun     bool
	Listed     int
	WithTicket int
	Resolved   int
	Unresolved int
	Unchanged  int
	Failed     int
	Updates    []Update
}

type Worker struct {
	host      git.Host
	tracker   TicketSearcher
	extractor Extractor
	notifier  Notifier
	opts      Options
	log       *slog.Logger
}

// NewWorker wires the collaborators of a run. notifier may be nil.
func NewWorker(host git.Host, tracker TicketSearcher, extractor Extractor, notifier Notifier, opts Options, log *slog.Logger) *Worker {
	opts.Prefix = reconcile.Prefix(opts.Prefix)
	return &Worker{
		host:      host,
		tracker:   tracker,
		extractor: extractor,
		notifier:  notifier,
		opts:      opts,
		log:       log,
	}
}

type pullTicket struct {
	pull git.PullRequest
	key  string
}

// Run performs one labelling pass. Only listing transport errors and tracker
// errors are returned; label write failures are logged and counted.
func (w *Worker) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RepoURL: w.host.RepoURL(), DryRun: w.opts.DryRun}

	pulls, err := w.host.ListOpenPullRequests(ctx)
	if errors.Is(err, git.ErrPullsUnavailable) {
		w.log.Info("could not retrieve PR details", "repo", summary.RepoURL, "err", err)
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("list pull requests: %w", err)
	}
	summary.Listed = len(pulls)

	matched := w.extract(pulls)
	summary.WithTicket = len(matched)
	if len(matched) == 0 {
		w.log.Info("no tickets found in PRs, skipping jql", "pulls", len(pulls))
		return summary, nil
	}

	keys := make([]string, 0, len(matched))
	for _, m := range matched {
		keys = append(keys, m.key)
	}
	keys = jira.UniqueKeys(keys)
	w.log.Info("resolving tickets", "jql", jira.BuildJQL(keys), "keys", len(keys))

	tickets, err := w.tracker.Search(ctx, keys)
	if err != nil {
		return summary, fmt.Errorf("resolve tickets: %w", err)
	}
	w.log.Debug("tickets resolved", "found", len(tickets))

	var updates []Update
	for _, m := range matched {
		var ticket *jira.Ticket
		if t, ok := jira.Lookup(tickets, m.key); ok {
			ticket = &t
			summary.Resolved++
		} else {
			summary.Unresolved++
			w.log.Warn("ticket not returned by jira, leaving labels", "pr", m.pull.Number, "ticket", m.key)
		}

		res := reconcile.Reconcile(m.pull.Labels, ticket, w.opts.Prefix)
		w.log.Debug("reconciled", "pr", m.pull.Number, "ticket", m.key, "old", res.Previous, "new", res.Labels, "changed", res.Changed)
		if !res.Changed {
			if ticket != nil {
				summary.Unchanged++
			}
			continue
		}
		if long := reconcile.TooLong(res.Labels); len(long) > 0 {
			w.log.Warn("labels exceed the host's name limit, write will likely fail",
				"pr", m.pull.Number, "ticket", m.key, "limit", reconcile.MaxLabelLength, "labels", long)
		}
		updates = append(updates, Update{
			Number:   m.pull.Number,
			URL:      m.pull.URL,
			Ticket:   m.key,
			Labels:   res.Labels,
			Previous: res.Previous,
		})
	}

	for _, u := range updates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if w.opts.DryRun {
			w.log.Info("[dry-run] would replace labels", "pr", u.Number, "new", u.Labels, "old", u.Previous)
			summary.Updates = append(summary.Updates, u)
			continue
		}

		w.log.Info("replacing labels", "pr", u.Number, "new", u.Labels, "old", u.Previous)
		if err := w.host.ReplaceLabels(ctx, u.Number, u.Labels); err != nil {
			w.log.Warn("error replacing labels", "pr", u.Number, "err", err)
			summary.Failed++
			continue
		}
		summary.Updates = append(summary.Updates, u)
	}

	w.log.Info("labelling complete",
		"listed", summary.Listed,
		"with_ticket", summary.WithTicket,
		"updated", len(summary.Updates),
		"unchanged", summary.Unchanged,
		"unresolved", summary.Unresolved,
		"failed", summary.Failed,
	)

	if w.notifier != nil && len(summary.Updates) > 0 {
		if err := w.notifier.NotifyRun(ctx, summary); err != nil {
			w.log.Warn("failed to send run notification", "err", err)
		}
	}

	return summary, nil
}

func (w *Worker) extract(pulls []git.PullRequest) []pullTicket {
	var out []pullTicket
	for _, pr := range pulls {
		key, ok := w.extractor.Extract(pr.Title, pr.Body)
		if !ok {
			w.log.Debug("no ticket in PR", "pr", pr.Number)
			continue
		}
		w.log.Info("ticket found", "pr", pr.Number, "ticket", key)
		out = append(out, pullTicket{pull: pr, key: key})
	}
	return out
}
