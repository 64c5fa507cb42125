package git

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const pullsPerPage = 100

type GitHubHost struct {
	gh   *github.Client
	info RepoInfo
}

// NewGitHubHost builds a host for github.com, or for a GitHub Enterprise
// server when info.Host is anything else.
func NewGitHubHost(ctx context.Context, token string, info RepoInfo) (*GitHubHost, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if info.Host != "github.com" {
		base := info.Scheme + "://" + info.Host
		var err error
		gh, err = gh.WithEnterpriseURLs(base+"/api/v3/", base+"/api/uploads/")
		if err != nil {
			return nil, fmt.Errorf("github enterprise client: %w", err)
		}
	}

	return NewGitHubHostWithClient(gh, info), nil
}

func NewGitHubHostWithClient(gh *github.Client, info RepoInfo) *GitHubHost {
	return &GitHubHost{gh: gh, info: info}
}

func (h *GitHubHost) RepoURL() string { return h.info.RawURL }

func (h *GitHubHost) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: pullsPerPage},
	}

	var out []PullRequest
	for {
		pulls, resp, err := h.gh.PullRequests.List(ctx, h.info.Owner, h.info.Repo, opts)
		if err != nil {
			if resp != nil && resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("github list pulls: status %d: %w", resp.StatusCode, ErrPullsUnavailable)
			}
			return nil, fmt.Errorf("github list pulls: %w", err)
		}

		for _, pr := range pulls {
			labels := make([]string, 0, len(pr.Labels))
			for _, l := range pr.Labels {
				labels = append(labels, l.GetName())
			}
			out = append(out, PullRequest{
				Number: pr.GetNumber(),
				Title:  pr.GetTitle(),
				Body:   pr.GetBody(),
				Labels: labels,
				URL:    pr.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (h *GitHubHost) ReplaceLabels(ctx context.Context, number int, labels []string) error {
	_, _, err := h.gh.Issues.ReplaceLabelsForIssue(ctx, h.info.Owner, h.info.Repo, number, labels)
	if err != nil {
		return fmt.Errorf("github replace labels: %w", err)
	}
	return nil
}
