package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/labeler"
)

type countingRunner struct {
	runs atomic.Int32
	err  error
	done chan struct{}
}

func (r *countingRunner) Run(context.Context) (labeler.Summary, error) {
	r.runs.Add(1)
	if r.done != nil {
		r.done <- struct{}{}
	}
	return labeler.Summary{}, r.err
}

func newTestServer(t *testing.T, runner Runner, ghSecret, glSecret string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(runner, git.RepoInfo{Host: "github.com", Owner: "acme", Repo: "widgets"}, ghSecret, glSecret, log)
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func githubRequest(event, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	return req
}

const openedPayload = `{"action":"opened","pull_request":{"number":7},"repository":{"html_url":"https://github.com/Acme/Widgets"}}`

func TestServer_GitHub(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		body       string
		signature  string
		wantStatus int
		wantQueued bool
	}{
		{"opened triggers", "pull_request", openedPayload, sign("s3cret", openedPayload), http.StatusAccepted, true},
		{"bad signature", "pull_request", openedPayload, sign("other", openedPayload), http.StatusUnauthorized, false},
		{"other event", "push", `{}`, sign("s3cret", `{}`), http.StatusNoContent, false},
		{
			"closed ignored", "pull_request",
			`{"action":"closed","repository":{"html_url":"https://github.com/acme/widgets"}}`,
			sign("s3cret", `{"action":"closed","repository":{"html_url":"https://github.com/acme/widgets"}}`),
			http.StatusNoContent, false,
		},
		{
			"other repository ignored", "pull_request",
			`{"action":"opened","repository":{"html_url":"https://github.com/acme/gadgets"}}`,
			sign("s3cret", `{"action":"opened","repository":{"html_url":"https://github.com/acme/gadgets"}}`),
			http.StatusNoContent, false,
		},
		{"bad json", "pull_request", `{`, sign("s3cret", `{`), http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &countingRunner{}, "s3cret", "")
			req := githubRequest(tt.event, tt.body)
			req.Header.Set("X-Hub-Signature-256", tt.signature)
			rec := httptest.NewRecorder()

			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantQueued, len(s.trigger) == 1)
		})
	}
}

func TestServer_GitHubWithoutSecret(t *testing.T) {
	s := newTestServer(t, &countingRunner{}, "", "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, githubRequest("pull_request", openedPayload))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_GitLab(t *testing.T) {
	s := newTestServer(t, &countingRunner{}, "", "tok")
	s.repo = git.RepoInfo{Host: "gitlab.example.com", Owner: "group/sub", Repo: "widgets"}

	body := `{"object_kind":"merge_request","object_attributes":{"iid":3,"action":"update"},"project":{"web_url":"https://gitlab.example.com/group/sub/widgets"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(body))
	req.Header.Set("X-Gitlab-Token", "wrong")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(body))
	req.Header.Set("X-Gitlab-Token", "tok")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, s.trigger, 1)

	merged := strings.Replace(body, `"update"`, `"merge"`, 1)
	req = httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(merged))
	req.Header.Set("X-Gitlab-Token", "tok")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, &countingRunner{}, "", "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_TriggerCoalesces(t *testing.T) {
	s := newTestServer(t, &countingRunner{}, "", "")
	assert.True(t, s.Trigger())
	assert.False(t, s.Trigger(), "second trigger is dropped while one is queued")
}

func TestServer_LoopRunsQueuedPasses(t *testing.T) {
	runner := &countingRunner{err: errors.New("jira down"), done: make(chan struct{})}
	s := newTestServer(t, runner, "", "")

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Loop(ctx)
		close(stopped)
	}()

	require.True(t, s.Trigger())
	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pass did not run")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, int32(1), runner.runs.Load())
}
