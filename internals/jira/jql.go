package jira

import (
	"strings"
)

// BuildJQL returns a single `key in (...)` clause covering every key.
func BuildJQL(keys []string) string {
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		quoted = append(quoted, `"`+escapeJQLString(k)+`"`)
	}
	return "key in (" + strings.Join(quoted, ",") + ")"
}

// UniqueKeys drops blank and repeated keys, keeping first-seen order.
func UniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func escapeJQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
