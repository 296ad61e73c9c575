// Package verify black-box tests an installed shell binary: it runs the
// binary with arguments or piped stdin and matches what it prints.
//
// Checks are independent. Every check runs even when an earlier one
// fails, and each runs under its own timeout.
package verify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// ErrEmptyPattern is returned when a check is built with an empty expected
// pattern. An empty pattern matches any output and would prove nothing.
var ErrEmptyPattern = errors.New("expected pattern is empty")

// Matcher decides whether captured output satisfies a check.
type Matcher interface {
	Match(output string) bool
	String() string
}

type containsMatcher struct {
	want string
}

// Contains matches output containing want after ANSI escapes are stripped.
func Contains(want string) (Matcher, error) {
	if want == "" {
		return nil, ErrEmptyPattern
	}
	return containsMatcher{want: want}, nil
}

func (m containsMatcher) Match(output string) bool {
	return strings.Contains(ansi.Strip(output), m.want)
}

func (m containsMatcher) String() string {
	return fmt.Sprintf("contains %q", m.want)
}

type regexMatcher struct {
	re *regexp.Regexp
}

// Regex matches output against pattern after ANSI escapes are stripped.
func Regex(pattern string) (Matcher, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return regexMatcher{re: re}, nil
}

func (m regexMatcher) Match(output string) bool {
	return m.re.MatchString(ansi.Strip(output))
}

func (m regexMatcher) String() string {
	return fmt.Sprintf("matches /%s/", m.re.String())
}
