// Package ticket finds issue-tracker keys in pull request text.
package ticket

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyPattern = errors.New("ticket pattern is empty")

// Extractor applies one user-supplied pattern to pull request text.
type Extractor struct {
	re     *regexp.Regexp
	keyIdx int
}

// KeyGroup names the optional capture group that narrows the match to the key.
const KeyGroup = "key"

func NewExtractor(pattern string) (*Extractor, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ErrEmptyPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile ticket pattern %q: %w", pattern, err)
	}
	return &Extractor{re: re, keyIdx: re.SubexpIndex(KeyGroup)}, nil
}

// Extract returns the first key found in title and body. Title and body are
// joined with a newline so a match cannot straddle the two.
//
// The key is the whole match. Unnamed groups such as (ABC|OPS)-\d+ do not
// change that; only a group named "key", e.g. \[(?P<key>[A-Z]+-\d+)\], narrows
// the result to the group.
func (e *Extractor) Extract(title, body string) (string, bool) {
	text := title + "\n" + body
	m := e.re.FindStringSubmatchIndex(text)
	if m == nil {
		return "", false
	}
	if e.keyIdx > 0 && m[2*e.keyIdx] >= 0 {
		if key := text[m[2*e.keyIdx]:m[2*e.keyIdx+1]]; key != "" {
			return key, true
		}
	}
	key := text[m[0]:m[1]]
	if key == "" {
		return "", false
	}
	return key, true
}

func (e *Extractor) String() string { return e.re.String() }
