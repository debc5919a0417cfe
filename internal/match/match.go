// Package match evaluates ignore patterns against pile-relative paths.
//
// The dialect is doublestar globs with negation:
//
//   - Blank lines and lines starting with '#' are skipped.
//   - A leading '!' re-includes a path excluded by an earlier pattern.
//   - Later patterns override earlier ones for the same path (last match wins).
//   - A trailing '/' marks a directory pattern: it matches the directory
//     itself and everything beneath it.
//   - Patterns containing '/' match against the full relative path; patterns
//     without '/' match against the basename (so "*.log" hits "sub/app.log").
//
// An empty pattern set ignores nothing.
package match

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pattern is one compiled ignore rule.
type pattern struct {
	glob      string
	negate    bool // re-include instead of ignore
	dirOnly   bool // trailing '/': match the directory and its contents
	matchPath bool // true = match relative path; false = match basename only
}

// PatternSet is an ordered, compiled set of ignore patterns.
// It is immutable after Compile and safe for concurrent use.
type PatternSet struct {
	patterns []pattern
}

// Compile parses raw pattern lines into a PatternSet.
// Returns an error naming the first malformed glob.
func Compile(lines []string) (*PatternSet, error) {
	var patterns []pattern
	for _, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		p := pattern{}
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = strings.TrimSpace(raw[1:])
			if raw == "" {
				continue
			}
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimSuffix(raw, "/")
		}
		p.glob = raw
		// Directory patterns are anchored to the pile root, so they always
		// match against the full relative path.
		p.matchPath = p.dirOnly || strings.Contains(raw, "/")

		if !doublestar.ValidatePattern(p.glob) {
			return nil, fmt.Errorf("invalid ignore pattern %q", raw)
		}
		patterns = append(patterns, p)
	}
	return &PatternSet{patterns: patterns}, nil
}

// Len returns the number of compiled patterns.
func (s *PatternSet) Len() int { return len(s.patterns) }

// Ignored reports whether relPath is excluded by the pattern set.
// relPath may use either separator; it is normalized to forward slashes.
func (s *PatternSet) Ignored(relPath string) bool {
	if len(s.patterns) == 0 || relPath == "" {
		return false
	}

	normalized := filepath.ToSlash(relPath)
	basename := path.Base(normalized)

	ignored := false
	for _, p := range s.patterns {
		if p.matches(normalized, basename) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p *pattern) matches(relPath, basename string) bool {
	target := basename
	if p.matchPath {
		target = relPath
	}

	matched, err := doublestar.Match(p.glob, target)
	if err != nil {
		// Pattern validated at compile time; treat as non-matching.
		return false
	}
	if matched {
		return true
	}

	if p.dirOnly {
		// The directory pattern also covers everything beneath the directory.
		matched, err = doublestar.Match(p.glob+"/**", relPath)
		return err == nil && matched
	}
	return false
}
