package mudsmoke

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a case-insensitive, multiline regular expression describing
// server output that signals a response is (probably) complete.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// CompilePattern compiles expr with the (?im) flags.
func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile("(?im)" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return &Pattern{expr: expr, re: re}, nil
}

// MustCompilePattern is like CompilePattern but panics if expr is invalid.
// It is meant for literal patterns.
func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// LiteralPattern returns a Pattern matching text literally.
func LiteralPattern(text string) *Pattern {
	return MustCompilePattern(regexp.QuoteMeta(text))
}

// AnyPattern returns a Pattern matching any of the given patterns, or nil
// when none are given.
func AnyPattern(patterns ...*Pattern) *Pattern {
	exprs := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != nil {
			exprs = append(exprs, "(?:"+p.expr+")")
		}
	}
	if len(exprs) == 0 {
		return nil
	}
	return MustCompilePattern(strings.Join(exprs, "|"))
}

// MatchString reports whether text contains a match. A nil Pattern never
// matches.
func (p *Pattern) MatchString(text string) bool {
	if p == nil {
		return false
	}
	return p.re.MatchString(text)
}

// index returns the offset of the first match in text, or -1.
func (p *Pattern) index(text string) int {
	if p == nil {
		return -1
	}
	loc := p.re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func (p *Pattern) String() string {
	if p == nil {
		return "<none>"
	}
	return p.expr
}
