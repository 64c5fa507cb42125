// Package testutil provides shared test doubles.
package testutil

import (
	"context"

	"github.com/jadenj13/jira-labels/internals/git"
	"github.com/jadenj13/jira-labels/internals/jira"
)

// Ensure MockHost implements git.Host.
var _ git.Host = (*MockHost)(nil)

// MockHost is a test double for git.Host. Replaced holds every label write
// keyed by pull request number, Writes the write order.
type MockHost struct {
	Pulls      []git.PullRequest
	ListErr    error
	ReplaceErr map[int]error
	Replaced   map[int][]string
	Writes     []int
	URL        string
}

func NewMockHost(pulls ...git.PullRequest) *MockHost {
	return &MockHost{
		Pulls:      pulls,
		ReplaceErr: make(map[int]error),
		Replaced:   make(map[int][]string),
		URL:        "https://github.com/acme/widgets",
	}
}

func (m *MockHost) ListOpenPullRequests(_ context.Context) ([]git.PullRequest, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Pulls, nil
}

func (m *MockHost) ReplaceLabels(_ context.Context, number int, labels []string) error {
	m.Writes = append(m.Writes, number)
	if err := m.ReplaceErr[number]; err != nil {
		return err
	}
	m.Replaced[number] = append([]string(nil), labels...)

	// Keep Pulls current so a second run sees the written labels.
	for i := range m.Pulls {
		if m.Pulls[i].Number == number {
			m.Pulls[i].Labels = append([]string(nil), labels...)
		}
	}
	return nil
}

func (m *MockHost) RepoURL() string { return m.URL }

// MockTicketSearcher records every batched search.
type MockTicketSearcher struct {
	Tickets map[string]jira.Ticket
	Err     error
	Calls   [][]string
}

func NewMockTicketSearcher(tickets ...jira.Ticket) *MockTicketSearcher {
	m := &MockTicketSearcher{Tickets: make(map[string]jira.Ticket)}
	for _, t := range tickets {
		m.Tickets[t.Key] = t
	}
	return m
}

func (m *MockTicketSearcher) Search(_ context.Context, keys []string) (map[string]jira.Ticket, error) {
	m.Calls = append(m.Calls, append([]string(nil), keys...))
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]jira.Ticket)
	for _, k := range keys {
		if t, ok := m.Tickets[k]; ok {
			out[k] = t
		}
	}
	return out, nil
}
