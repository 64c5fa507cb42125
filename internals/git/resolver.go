package git

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type RepoInfo struct {
	Platform Platform
	Scheme   string
	Host     string // e.g. "github.com" or "gitlab.mycompany.com"
	Owner    string
	Repo     string
	RawURL   string
}

// ResolveRepository turns the shorthand "owner/repo" into a URL on serverURL.
// Full HTTPS and SSH URLs are returned unchanged.
func ResolveRepository(repository, serverURL string) string {
	repository = strings.TrimSpace(repository)
	if strings.Contains(repository, "://") || strings.HasPrefix(repository, "git@") {
		return repository
	}
	return strings.TrimRight(serverURL, "/") + "/" + strings.Trim(repository, "/")
}

func ParseRepoURL(rawURL string) (RepoInfo, error) {
	rawURL = strings.TrimSpace(rawURL)

	if strings.HasPrefix(rawURL, "git@") {
		rawURL = normaliseSSH(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	host := strings.ToLower(u.Hostname())
	platform, err := detectPlatform(host)
	if err != nil {
		return RepoInfo{}, err
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")

	parts := strings.Split(path, "/")

	switch platform {
	case PlatformGitHub:
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return RepoInfo{}, fmt.Errorf("github URL must have owner and repo: %q", rawURL)
		}
		return RepoInfo{
			Platform: PlatformGitHub,
			Scheme:   scheme,
			Host:     u.Host,
			Owner:    parts[0],
			Repo:     parts[1],
			RawURL:   rawURL,
		}, nil

	case PlatformGitLab:
		if len(parts) < 2 || parts[len(parts)-1] == "" {
			return RepoInfo{}, fmt.Errorf("gitlab URL must have at least namespace and repo: %q", rawURL)
		}
		return RepoInfo{
			Platform: PlatformGitLab,
			Scheme:   scheme,
			Host:     u.Host,
			Owner:    strings.Join(parts[:len(parts)-1], "/"),
			Repo:     parts[len(parts)-1],
			RawURL:   rawURL,
		}, nil
	}

	return RepoInfo{}, fmt.Errorf("%w for host %q", ErrUnsupportedPlatform, host)
}

func detectPlatform(host string) (Platform, error) {
	switch {
	case host == "github.com" || strings.Contains(host, "github"):
		return PlatformGitHub, nil
	case host == "gitlab.com" || strings.Contains(host, "gitlab"):
		return PlatformGitLab, nil
	default:
		return 0, fmt.Errorf(
			"%w: cannot determine platform from host %q, expected a github or gitlab domain",
			ErrUnsupportedPlatform, host,
		)
	}
}

func normaliseSSH(s string) string {
	s = strings.TrimPrefix(s, "git@")
	s = strings.Replace(s, ":", "/", 1)
	return "https://" + s
}

type Factory struct {
	githubToken string
	gitlabToken string
}

func NewFactory(githubToken, gitlabToken string) *Factory {
	return &Factory{
		githubToken: githubToken,
		gitlabToken: gitlabToken,
	}
}

func (f *Factory) HostFor(ctx context.Context, repoURL string) (Host, RepoInfo, error) {
	info, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, RepoInfo{}, err
	}

	switch info.Platform {
	case PlatformGitHub:
		if f.githubToken == "" {
			return nil, info, fmt.Errorf("no GitHub token configured")
		}
		h, err := NewGitHubHost(ctx, f.githubToken, info)
		if err != nil {
			return nil, info, err
		}
		return h, info, nil

	case PlatformGitLab:
		if f.gitlabToken == "" {
			return nil, info, fmt.Errorf("no GitLab token configured")
		}
		// Self-hosted instances use the URL's scheme+host.
		h, err := NewGitLabHost(f.gitlabToken, info.Scheme+"://"+info.Host, info)
		if err != nil {
			return nil, info, err
		}
		return h, info, nil
	}

	return nil, info, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, info.Platform)
}
