package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jadenj13/jira-labels/internals/labeler"
)

func testSummary() labeler.Summary {
	return labeler.Summary{
		RepoURL: "https://github.com/acme/widgets",
		Updates: []labeler.Update{
			{Number: 12, URL: "https://github.com/acme/widgets/pull/12", Ticket: "ABC-1", Labels: []string{"bug", "jira:done"}},
			{Number: 13, Ticket: "ABC-2", Labels: []string{"jira:to_do"}},
		},
		Failed: 1,
	}
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary(testSummary())

	assert.Contains(t, text, "Relabelled 2 PR(s)")
	assert.Contains(t, text, "https://github.com/acme/widgets\n")
	assert.Contains(t, text, "<https://github.com/acme/widgets/pull/12|#12> (ABC-1): bug, jira:done")
	assert.Contains(t, text, "#13 (ABC-2): jira:to_do")
	assert.Contains(t, text, "Failed writes: 1, tickets not found: 0")
}

func TestFormatSummary_DryRun(t *testing.T) {
	s := testSummary()
	s.DryRun = true
	s.Failed = 0

	text := FormatSummary(s)
	assert.Contains(t, text, "[dry-run] Would relabel 2 PR(s)")
	assert.NotContains(t, text, "Failed writes")
}

func TestNotifier_NotifyRun(t *testing.T) {
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		channel = r.Form.Get("channel")
		text = r.Form.Get("text")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"channel":"C123","ts":"1700000000.000100"}`)
	}))
	defer srv.Close()

	n := NewNotifier("xoxb-test", "C123", slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, n.NotifyRun(context.Background(), testSummary()))

	assert.Equal(t, "C123", channel)
	assert.Contains(t, text, "ABC-1")
}

func TestNotifier_NotifyRun_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer srv.Close()

	n := NewNotifier("xoxb-test", "C404", slack.OptionAPIURL(srv.URL+"/"))
	err := n.NotifyRun(context.Background(), testSummary())
	assert.ErrorContains(t, err, "channel_not_found")
}
