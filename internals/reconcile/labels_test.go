package reconcile

import (
	"testing"

	"github.com/jadenj13/jira-labels/internals/jira"
	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	assert.Equal(t, "jira", Prefix(""))
	assert.Equal(t, "jira", Prefix("   "))
	assert.Equal(t, "ops", Prefix("ops"))
	assert.Equal(t, "ops", Prefix(" ops "))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"In Progress", "in_progress"},
		{"Done", "done"},
		{"Ready  for\tReview", "ready_for_review"},
		{"  Blocked ", "blocked"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.in))
		})
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		current     []string
		ticket      *jira.Ticket
		prefix      string
		wantLabels  []string
		wantChanged bool
	}{
		{
			name:        "replaces status label and mirrors ticket labels",
			current:     []string{"bug", "jira:todo"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "In Progress", Labels: []string{"urgent"}},
			prefix:      "jira",
			wantLabels:  []string{"bug", "jira:in_progress", "jira::label:urgent"},
			wantChanged: true,
		},
		{
			name:        "blank prefix falls back to jira",
			current:     []string{},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done"},
			prefix:      " ",
			wantLabels:  []string{"jira:done"},
			wantChanged: true,
		},
		{
			name:        "custom prefix leaves other namespaces alone",
			current:     []string{"jira:todo", "ops:todo"},
			ticket:      &jira.Ticket{Key: "OPS-1", Status: "Done"},
			prefix:      "ops",
			wantLabels:  []string{"jira:todo", "ops:done"},
			wantChanged: true,
		},
		{
			name:        "stale mirrors are cleared",
			current:     []string{"jira:done", "jira::label:old", "jira::label:urgent"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done", Labels: []string{"urgent"}},
			prefix:      "jira",
			wantLabels:  []string{"jira:done", "jira::label:urgent"},
			wantChanged: true,
		},
		{
			name:        "already reconciled",
			current:     []string{"bug", "jira:done", "jira::label:urgent"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done", Labels: []string{"urgent"}},
			prefix:      "jira",
			wantLabels:  []string{"bug", "jira:done", "jira::label:urgent"},
			wantChanged: false,
		},
		{
			name:        "ordering alone is not a change",
			current:     []string{"jira::label:urgent", "jira:done", "bug"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done", Labels: []string{"urgent"}},
			prefix:      "jira",
			wantLabels:  []string{"bug", "jira:done", "jira::label:urgent"},
			wantChanged: false,
		},
		{
			name:        "unresolved ticket leaves labels untouched",
			current:     []string{"bug", "jira:todo"},
			ticket:      nil,
			prefix:      "jira",
			wantLabels:  []string{"bug", "jira:todo"},
			wantChanged: false,
		},
		{
			name:        "blank status keeps existing status label",
			current:     []string{"bug", "jira:todo"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "", Labels: []string{"urgent"}},
			prefix:      "jira",
			wantLabels:  []string{"bug", "jira:todo", "jira::label:urgent"},
			wantChanged: true,
		},
		{
			name:        "duplicate ticket labels collapse",
			current:     nil,
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done", Labels: []string{"a", "a", " "}},
			prefix:      "jira",
			wantLabels:  []string{"jira:done", "jira::label:a"},
			wantChanged: true,
		},
		{
			name:        "multiple stale status labels collapse to one",
			current:     []string{"jira:todo", "jira:in_review"},
			ticket:      &jira.Ticket{Key: "ABC-1", Status: "Done"},
			prefix:      "jira",
			wantLabels:  []string{"jira:done"},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.current, tt.ticket, tt.prefix)
			assert.Equal(t, tt.wantLabels, got.Labels)
			assert.Equal(t, tt.wantChanged, got.Changed)
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	ticket := &jira.Ticket{Key: "ABC-1", Status: "In Review", Labels: []string{"urgent", "backend"}}

	first := Reconcile([]string{"bug", "jira:todo", "jira::label:stale"}, ticket, "jira")
	assert.True(t, first.Changed)

	second := Reconcile(first.Labels, ticket, "jira")
	assert.False(t, second.Changed)
	assert.Equal(t, first.Labels, second.Labels)
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	current := []string{"bug", "jira:todo"}
	got := Reconcile(current, &jira.Ticket{Status: "Done"}, "jira")

	assert.Equal(t, []string{"bug", "jira:todo"}, current)
	assert.Equal(t, []string{"bug", "jira:todo"}, got.Previous)
}

func TestTooLong(t *testing.T) {
	long := MirrorLabel("jira", "customer-escalation-requires-follow-up-q3")
	res := Reconcile([]string{"bug"}, &jira.Ticket{Key: "ABC-1", Status: "Done", Labels: []string{"customer-escalation-requires-follow-up-q3", "urgent"}}, "jira")

	assert.Greater(t, len(long), MaxLabelLength)
	assert.Equal(t, []string{long}, TooLong(res.Labels))
	assert.Empty(t, TooLong([]string{"bug", "jira:done", "jira::label:urgent"}))
}
