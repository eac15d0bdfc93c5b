package mudsmoke

import (
	"fmt"
	"strings"
)

// A Matcher reports whether server output satisfies a condition.
// The string return is a human-readable description for reports.
type Matcher func(output string) (ok bool, description string)

// Text matches if the output contains s, ignoring case.
func Text(s string) Matcher {
	want := strings.ToLower(s)
	return func(output string) (bool, string) {
		return strings.Contains(strings.ToLower(output), want), fmt.Sprintf("output to contain %q", s)
	}
}

// Regexp matches if the output matches expr, compiled as a Pattern. An
// invalid expression causes a panic; use MatchPattern for expressions that
// are not literals.
func Regexp(expr string) Matcher {
	return MatchPattern(MustCompilePattern(expr))
}

// MatchPattern matches if the output matches p.
func MatchPattern(p *Pattern) Matcher {
	return func(output string) (bool, string) {
		return p.MatchString(output), fmt.Sprintf("output to match %s", p)
	}
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return func(output string) (bool, string) {
		ok, desc := m(output)
		return !ok, "NOT(" + desc + ")"
	}
}

// All matches when every provided matcher matches.
func All(matchers ...Matcher) Matcher {
	return func(output string) (bool, string) {
		descs := make([]string, 0, len(matchers))
		for _, m := range matchers {
			ok, desc := m(output)
			descs = append(descs, desc)
			if !ok {
				return false, "all of: " + strings.Join(descs, ", ")
			}
		}
		return true, "all of: " + strings.Join(descs, ", ")
	}
}

// Any matches when at least one provided matcher matches.
func Any(matchers ...Matcher) Matcher {
	return func(output string) (bool, string) {
		descs := make([]string, 0, len(matchers))
		for _, m := range matchers {
			ok, desc := m(output)
			descs = append(descs, desc)
			if ok {
				return true, "any of: " + strings.Join(descs, ", ")
			}
		}
		return false, "any of: " + strings.Join(descs, ", ")
	}
}

// Check applies m to output. A nil Matcher means no assertion is wanted:
// the result passes but is reported as unchecked.
func (m Matcher) Check(output string) (passed, checked bool, description string) {
	if m == nil {
		return true, false, "no expectation"
	}
	ok, desc := m(output)
	return ok, true, desc
}
