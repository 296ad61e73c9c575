package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
	"github.com/Zixiao-System/leizi-formula/internal/runner"
)

// Kind classifies a failed check.
type Kind string

const (
	VersionMismatch   Kind = "VersionMismatch"
	ExecutionMismatch Kind = "ExecutionMismatch"
	FeatureMismatch   Kind = "FeatureMismatch"
	Timeout           Kind = "Timeout"
)

// outputTailLines bounds how much output a failed result carries.
const outputTailLines = 20

// TestCase is one check against the binary.
type TestCase struct {
	Name        string
	Kind        string // formula.KindVersion, KindExecution or KindFeature
	Args        []string
	Input       string
	Expect      Matcher
	Description string
}

// failureKind maps a check kind to the kind reported when it fails.
func (tc TestCase) failureKind() Kind {
	switch tc.Kind {
	case formula.KindVersion:
		return VersionMismatch
	case formula.KindFeature:
		return FeatureMismatch
	default:
		return ExecutionMismatch
	}
}

// NewTestCase builds a check from a formula test entry.
func NewTestCase(spec formula.TestSpec) (TestCase, error) {
	var (
		m   Matcher
		err error
	)
	if spec.Regex {
		m, err = Regex(spec.Expect)
	} else {
		m, err = Contains(spec.Expect)
	}
	if err != nil {
		return TestCase{}, fmt.Errorf("test %s: %w", spec.Name, err)
	}

	tc := TestCase{Name: spec.Name, Kind: spec.Kind, Args: spec.Args, Input: spec.Input, Expect: m}
	switch {
	case len(spec.Args) > 0:
		tc.Description = "run with " + strings.Join(spec.Args, " ")
	case spec.Input != "":
		tc.Description = fmt.Sprintf("pipe %q", spec.Input)
	}
	return tc, nil
}

// NewTestCases builds checks for every formula test entry.
func NewTestCases(specs []formula.TestSpec) ([]TestCase, error) {
	cases := make([]TestCase, 0, len(specs))
	for _, s := range specs {
		tc, err := NewTestCase(s)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// FormulaTestCases returns the default checks merged with a formula's own
// tests. An entry named like a default replaces it in place; other entries
// run after the defaults.
func FormulaTestCases(specs []formula.TestSpec) ([]TestCase, error) {
	custom, err := NewTestCases(specs)
	if err != nil {
		return nil, err
	}

	cases := DefaultTestCases()
	index := make(map[string]int, len(cases))
	for i, tc := range cases {
		index[tc.Name] = i
	}
	for _, tc := range custom {
		if i, ok := index[tc.Name]; ok {
			cases[i] = tc
			continue
		}
		index[tc.Name] = len(cases)
		cases = append(cases, tc)
	}
	return cases, nil
}

// DefaultTestCases returns the release checks: version, execution and the
// array feature.
func DefaultTestCases() []TestCase {
	cases, err := NewTestCases(formula.DefaultTests())
	if err != nil {
		panic(err)
	}
	return cases
}

// Harness runs checks against a binary.
type Harness struct {
	runner  runner.Runner
	cases   []TestCase
	timeout time.Duration
	logger  config.Logger
}

// NewHarness creates a harness. Each check is bounded by timeout.
func NewHarness(r runner.Runner, cases []TestCase, timeout time.Duration, logger config.Logger) *Harness {
	return &Harness{runner: r, cases: cases, timeout: timeout, logger: config.OrNop(logger)}
}

// Run executes every check in order against binary and returns the report.
// Each check runs with a scrubbed environment and its own empty temporary
// HOME, so neither user configuration nor state written by an earlier check
// can influence the result.
func (h *Harness) Run(ctx context.Context, binary string) *Report {
	report := &Report{Binary: binary}
	for _, tc := range h.cases {
		res := h.runCase(ctx, binary, tc)
		report.Results = append(report.Results, res)
		if res.Passed {
			h.logger.Debug("check passed", "name", tc.Name)
		} else {
			h.logger.Warn("check failed", "name", tc.Name, "kind", res.Failure)
		}
	}
	return report
}

func (h *Harness) runCase(ctx context.Context, binary string, tc TestCase) CheckResult {
	res := CheckResult{
		Name:     tc.Name,
		Kind:     tc.Kind,
		Expected: tc.Expect.String(),
	}

	home, err := os.MkdirTemp("", "leizi-verify-home-*")
	if err != nil {
		h.logger.Warn("could not create isolated HOME", "check", tc.Name, "error", err)
		home = ""
	} else {
		defer os.RemoveAll(home)
	}

	env := runner.MinimalEnv("TERM=dumb")
	if home != "" {
		env = append(env, "HOME="+home)
	}
	cmd := runner.Command{Name: binary, Args: tc.Args, Env: env, Timeout: h.timeout}
	if tc.Input != "" {
		cmd.Stdin = strings.NewReader(tc.Input)
	}

	out, err := h.runner.Run(ctx, cmd)
	if out != nil {
		res.Duration = out.Duration
		res.Actual = runner.Tail(out.Stdout, outputTailLines)
	}
	if err != nil {
		res.Err = err.Error()
		res.Failure = tc.failureKind()
		var timeoutErr *runner.TimeoutError
		if errors.As(err, &timeoutErr) {
			res.Failure = Timeout
		}
		return res
	}

	// A version query must also succeed, the way a plain command
	// substitution would require.
	if tc.Kind == formula.KindVersion && out.ExitCode != 0 {
		res.Failure = VersionMismatch
		res.Err = fmt.Sprintf("exit status %d", out.ExitCode)
		return res
	}

	if !tc.Expect.Match(out.Stdout) {
		res.Failure = tc.failureKind()
		return res
	}

	res.Passed = true
	res.Actual = ""
	return res
}
