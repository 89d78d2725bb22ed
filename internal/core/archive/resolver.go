package archive

import (
	"fmt"
	"strings"
)

// NotFoundError reports that none of an artifact's candidate paths
// exist in the archive. Similar lists present entries whose path
// contains the artifact's keyword; it is advisory only and never used
// for matching.
type NotFoundError struct {
	What    string
	Tried   []string
	Similar []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found, tried: [%s]", e.What, strings.Join(e.Tried, " "))
	if len(e.Similar) > 0 {
		msg += fmt.Sprintf(" (archive has: [%s])", strings.Join(e.Similar, " "))
	}
	return msg
}

// Resolve walks candidates in declared order and returns the first
// entry whose path matches exactly. No wildcard matching.
func Resolve(entries []Entry, what, keyword string, candidates []string) (Entry, error) {
	byPath := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	for _, c := range candidates {
		if e, ok := byPath[c]; ok {
			return e, nil
		}
	}

	var similar []string
	if keyword != "" {
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Path), keyword) {
				similar = append(similar, e.Path)
			}
		}
	}
	return Entry{}, &NotFoundError{What: what, Tried: candidates, Similar: similar}
}
