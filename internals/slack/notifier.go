package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/jadenj13/jira-labels/internals/labeler"
)

// Notifier posts a short summary of a labelling run to one channel.
type Notifier struct {
	client    *slack.Client
	channelID string
}

func NewNotifier(botToken, channelID string, opts ...slack.Option) *Notifier {
	return &Notifier{
		client:    slack.New(botToken, opts...),
		channelID: channelID,
	}
}

func (n *Notifier) NotifyRun(ctx context.Context, summary labeler.Summary) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(FormatSummary(summary), false),
	)
	if err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

func FormatSummary(s labeler.Summary) string {
	var sb strings.Builder
	verb := "Relabelled"
	if s.DryRun {
		verb = "[dry-run] Would relabel"
	}
	fmt.Fprintf(&sb, ":label: *%s %d PR(s) from Jira*\nRepo: %s\n", verb, len(s.Updates), s.RepoURL)

	for _, u := range s.Updates {
		ref := fmt.Sprintf("#%d", u.Number)
		if u.URL != "" {
			ref = fmt.Sprintf("<%s|#%d>", u.URL, u.Number)
		}
		fmt.Fprintf(&sb, "• %s (%s): %s\n", ref, u.Ticket, strings.Join(u.Labels, ", "))
	}

	if s.Failed > 0 || s.Unresolved > 0 {
		fmt.Fprintf(&sb, "Failed writes: %d, tickets not found: %d\n", s.Failed, s.Unresolved)
	}
	return sb.String()
}
