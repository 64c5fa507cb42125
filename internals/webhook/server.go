// Package webhook triggers labelling passes from pull request webhooks.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/labeler"
)

const maxBodyBytes = 5 << 20

type Runner interface {
	Run(ctx context.Context) (labeler.Summary, error)
}

type Server struct {
	runner       Runner
	repo         git.RepoInfo
	githubSecret string
	gitlabSecret string
	trigger      chan struct{}
	log          *slog.Logger
}

func NewServer(runner Runner, repo git.RepoInfo, githubSecret, gitlabSecret string, log *slog.Logger) *Server {
	return &Server{
		runner:       runner,
		repo:         repo,
		githubSecret: githubSecret,
		gitlabSecret: gitlabSecret,
		trigger:      make(chan struct{}, 1),
		log:          log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/github", s.handleGitHub)
	mux.HandleFunc("POST /webhook/gitlab", s.handleGitLab)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Trigger queues a pass. It reports false when one is already queued.
func (s *Server) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Loop runs queued passes one at a time until ctx is done.
func (s *Server) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			if _, err := s.runner.Run(ctx); err != nil {
				s.log.Error("labelling pass failed", "err", err)
			}
		}
	}
}

type githubPRPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int `json:"number"`
	} `json:"pull_request"`
	Repository struct {
		HTMLURL string `json:"html_url"`
	} `json:"repository"`
}

var githubActions = map[string]bool{
	"opened":      true,
	"edited":      true,
	"reopened":    true,
	"synchronize": true,
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	body, err := s.readAndVerify(r, s.githubSecret, "x-hub-signature-256")
	if err != nil {
		s.log.Warn("github webhook verify failed", "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("x-github-event") != "pull_request" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var payload githubPRPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	if !githubActions[payload.Action] || !s.sameRepo(payload.Repository.HTMLURL) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.accept(w, "pr", payload.PullRequest.Number, payload.Action)
}

type gitlabMRPayload struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		IID    int    `json:"iid"`
		Action string `json:"action"`
	} `json:"object_attributes"`
	Project struct {
		WebURL string `json:"web_url"`
	} `json:"project"`
}

var gitlabActions = map[string]bool{
	"open":   true,
	"update": true,
	"reopen": true,
}

func (s *Server) handleGitLab(w http.ResponseWriter, r *http.Request) {
	if s.gitlabSecret != "" && !hmac.Equal([]byte(r.Header.Get("x-gitlab-token")), []byte(s.gitlabSecret)) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	var payload gitlabMRPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	if payload.ObjectKind != "merge_request" || !gitlabActions[payload.ObjectAttributes.Action] || !s.sameRepo(payload.Project.WebURL) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.accept(w, "mr", payload.ObjectAttributes.IID, payload.ObjectAttributes.Action)
}

func (s *Server) accept(w http.ResponseWriter, kind string, number int, action string) {
	if s.Trigger() {
		s.log.Info("labelling pass queued", kind, number, "action", action)
	} else {
		s.log.Debug("labelling pass already queued", kind, number, "action", action)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) sameRepo(rawURL string) bool {
	info, err := git.ParseRepoURL(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(info.Host, s.repo.Host) &&
		strings.EqualFold(info.Owner, s.repo.Owner) &&
		strings.EqualFold(info.Repo, s.repo.Repo)
}

func (s *Server) readAndVerify(r *http.Request, secret, sigHeader string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return body, nil
	}
	sig := strings.TrimPrefix(r.Header.Get(sigHeader), "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig)) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}
