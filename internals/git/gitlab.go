package git

import (
	"context"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type GitLabHost struct {
	gl   *gitlab.Client
	info RepoInfo
}

func NewGitLabHost(token, baseURL string, info RepoInfo) (*GitLabHost, error) {
	gl, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL+"/api/v4"))
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &GitLabHost{gl: gl, info: info}, nil
}

func (h *GitLabHost) RepoURL() string { return h.info.RawURL }

func (h *GitLabHost) pid() string {
	return h.info.Owner + "/" + h.info.Repo
}

func (h *GitLabHost) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State: gitlab.Ptr("opened"),
	}
	opts.PerPage = pullsPerPage

	var out []PullRequest
	for {
		mrs, resp, err := h.gl.MergeRequests.ListProjectMergeRequests(h.pid(), opts, gitlab.WithContext(ctx))
		if err != nil {
			if resp != nil && resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("gitlab list merge requests: status %d: %w", resp.StatusCode, ErrPullsUnavailable)
			}
			return nil, fmt.Errorf("gitlab list merge requests: %w", err)
		}

		for _, mr := range mrs {
			out = append(out, PullRequest{
				Number: int(mr.IID), // IID is the project-scoped MR number
				Title:  mr.Title,
				Body:   mr.Description,
				Labels: append([]string(nil), mr.Labels...),
				URL:    mr.WebURL,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (h *GitLabHost) ReplaceLabels(ctx context.Context, number int, labels []string) error {
	opts := &gitlab.UpdateMergeRequestOptions{
		Labels: (*gitlab.LabelOptions)(&labels),
	}
	_, _, err := h.gl.MergeRequests.UpdateMergeRequest(h.pid(), int64(number), opts, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gitlab replace labels: %w", err)
	}
	return nil
}
