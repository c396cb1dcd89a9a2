// Package matcher decides which files in an asset pool take part in a run,
// using shell-style globs or regular expressions.
package matcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto attempts to detect the pattern type.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher matches a single pattern against filenames.
type Matcher interface {
	Match(input string) bool
	Pattern() string
	Type() PatternType
}

type matcher struct {
	pattern         string
	patternType     PatternType
	compiled        *regexp.Regexp
	caseInsensitive bool
}

// New compiles a pattern. With Auto the type is detected from the pattern.
func New(patternType PatternType, pattern string, caseInsensitive bool) (Matcher, error) {
	m := &matcher{pattern: pattern, patternType: patternType, caseInsensitive: caseInsensitive}
	if patternType == Auto {
		m.patternType = detectPatternType(pattern)
	}

	switch m.patternType {
	case Glob:
		if _, err := filepath.Match(m.glob(), ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
	case Regex:
		expr := pattern
		if caseInsensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		m.compiled = compiled
	default:
		return nil, fmt.Errorf("unsupported pattern type: %v", patternType)
	}
	return m, nil
}

func (m *matcher) glob() string {
	if m.caseInsensitive {
		return strings.ToLower(m.pattern)
	}
	return m.pattern
}

// Match checks a base filename against the pattern.
func (m *matcher) Match(input string) bool {
	switch m.patternType {
	case Glob:
		if m.caseInsensitive {
			input = strings.ToLower(input)
		}
		matched, _ := filepath.Match(m.glob(), input)
		return matched
	case Regex:
		return m.compiled.MatchString(input)
	}
	return false
}

func (m *matcher) Pattern() string {
	return m.pattern
}

func (m *matcher) Type() PatternType {
	return m.patternType
}

// detectPatternType treats a pattern as a regex when it uses syntax globs never do.
func detectPatternType(pattern string) PatternType {
	regexIndicators := []string{
		"^", "$", "\\d", "\\w", "\\s", "\\D", "\\W", "\\S",
		"(?:", "(?i)", "{", "}", "+", "|", "(", ")",
	}
	for _, indicator := range regexIndicators {
		if strings.Contains(pattern, indicator) {
			return Regex
		}
	}
	return Glob
}

// MultiMatcher matches when any of its patterns does.
type MultiMatcher struct {
	matchers []Matcher
}

// NewMultiMatcher compiles every pattern with Auto detection.
func NewMultiMatcher(patterns []string, caseInsensitive bool) (*MultiMatcher, error) {
	mm := &MultiMatcher{matchers: make([]Matcher, 0, len(patterns))}
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		m, err := New(Auto, pattern, caseInsensitive)
		if err != nil {
			return nil, err
		}
		mm.matchers = append(mm.matchers, m)
	}
	return mm, nil
}

// Match returns true if any pattern matches.
func (mm *MultiMatcher) Match(input string) bool {
	for _, m := range mm.matchers {
		if m.Match(input) {
			return true
		}
	}
	return false
}

// Len is the number of compiled patterns.
func (mm *MultiMatcher) Len() int {
	return len(mm.matchers)
}

// DefaultExcludes skips OS droppings and partial writes.
var DefaultExcludes = []string{"Thumbs.db", ".*", "*.tmp", "*.part"}

// Filter selects pool files: a file is kept when it matches an include
// pattern (or there are none) and matches no exclude pattern.
type Filter struct {
	include *MultiMatcher
	exclude *MultiMatcher
}

// NewFilter builds a case-insensitive filter.
func NewFilter(include, exclude []string) (*Filter, error) {
	in, err := NewMultiMatcher(include, true)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	ex, err := NewMultiMatcher(exclude, true)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return &Filter{include: in, exclude: ex}, nil
}

// DefaultFilter keeps everything except DefaultExcludes.
func DefaultFilter() *Filter {
	f, _ := NewFilter(nil, DefaultExcludes)
	return f
}

// Keep reports whether a filename passes the filter. A nil filter keeps everything.
func (f *Filter) Keep(name string) bool {
	if f == nil {
		return true
	}
	base := filepath.Base(name)
	if f.include.Len() > 0 && !f.include.Match(base) {
		return false
	}
	return !f.exclude.Match(base)
}
