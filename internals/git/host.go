package git

import (
	"context"
	"errors"
)

// ErrPullsUnavailable is returned when the host answered the listing call
// with a non-200 status. Callers treat it as "nothing to do".
var ErrPullsUnavailable = errors.New("pull requests unavailable")

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Host is the source-control side of a labelling run.
type Host interface {
	ListOpenPullRequests(ctx context.Context) ([]PullRequest, error)
	// ReplaceLabels overwrites the full label set of a pull request.
	ReplaceLabels(ctx context.Context, number int, labels []string) error
	RepoURL() string
}

type PullRequest struct {
	Number int
	Title  string
	Body   string   // empty when the PR has no description
	Labels []string // in the order the host returned them
	URL    string
}

type Platform int

const (
	PlatformGitHub Platform = iota
	PlatformGitLab
)

func (p Platform) String() string {
	switch p {
	case PlatformGitHub:
		return "github"
	case PlatformGitLab:
		return "gitlab"
	default:
		return "unknown"
	}
}
