// Package reconcile computes the label set a pull request should carry for
// the state of its Jira ticket.
//
// Two label shapes are owned by a prefix (default "jira"):
//
//	jira:in_progress        status label, at most one per pull request
//	jira::label:urgent      mirror of a label set on the Jira ticket
//
// Every other label is left alone.
package reconcile

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jadenj13/jira-labels/internals/jira"
)

const DefaultPrefix = "jira"

// MaxLabelLength is GitHub's limit on label names. A longer label makes the
// whole replace call fail.
const MaxLabelLength = 50

var whitespaceRun = regexp.MustCompile(`\s+`)

type Result struct {
	Labels   []string // the label set to write
	Previous []string
	Changed  bool
}

// Prefix returns the label namespace, falling back to DefaultPrefix when raw
// is blank.
func Prefix(raw string) string {
	if p := strings.TrimSpace(raw); p != "" {
		return p
	}
	return DefaultPrefix
}

// NormalizeStatus turns a workflow status into a label token:
// "In Progress" becomes "in_progress". A blank status yields "".
func NormalizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(status), "_")
}

func StatusLabel(prefix, token string) string { return prefix + ":" + token }

func MirrorLabel(prefix, label string) string { return prefix + "::label:" + label }

// Reconcile computes the new label set for one pull request.
//
// A nil ticket means Jira did not return it; the labels are then left as they
// are. A ticket without a status keeps the existing status label but still
// refreshes the mirrors.
func Reconcile(current []string, ticket *jira.Ticket, prefix string) Result {
	prefix = Prefix(prefix)
	previous := append([]string(nil), current...)

	if ticket == nil {
		return Result{Labels: previous, Previous: previous}
	}

	token := NormalizeStatus(ticket.Status)
	mirrorPrefix := MirrorLabel(prefix, "")
	statusPrefix := prefix + ":"

	next := make([]string, 0, len(current)+len(ticket.Labels)+1)
	for _, l := range current {
		if strings.HasPrefix(l, mirrorPrefix) {
			continue
		}
		if token != "" && strings.HasPrefix(l, statusPrefix) {
			continue
		}
		next = append(next, l)
	}

	if token != "" {
		next = append(next, StatusLabel(prefix, token))
	}
	for _, l := range ticket.Labels {
		if l = strings.TrimSpace(l); l != "" {
			next = append(next, MirrorLabel(prefix, l))
		}
	}

	next = dedupe(next)
	return Result{
		Labels:   next,
		Previous: previous,
		Changed:  !sameSet(previous, next),
	}
}

// TooLong returns the labels longer than MaxLabelLength characters.
func TooLong(labels []string) []string {
	var out []string
	for _, l := range labels {
		if utf8.RuneCountInString(l) > MaxLabelLength {
			out = append(out, l)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}
