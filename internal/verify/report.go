package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Passed   bool          `json:"passed"`
	Failure  Kind          `json:"failure,omitempty"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report collects check results for one binary.
type Report struct {
	Binary  string        `json:"binary"`
	Results []CheckResult `json:"results"`
}

// Passed reports whether every check passed. An empty report has not
// verified anything and does not pass.
func (r *Report) Passed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r *Report) Failures() []CheckResult {
	var failed []CheckResult
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a human-readable summary styled for w.
func (r *Report) WriteText(w io.Writer) error {
	renderer := lipgloss.NewRenderer(w)
	pass := renderer.NewStyle().Foreground(lipgloss.Color("2"))
	fail := renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dim := renderer.NewStyle().Faint(true)

	var b strings.Builder
	fmt.Fprintf(&b, "Testing %s\n", r.Binary)
	for _, res := range r.Results {
		if res.Passed {
			fmt.Fprintf(&b, "  %s %s %s\n", pass.Render("PASS"), res.Name, dim.Render(res.Duration.Round(time.Millisecond).String()))
			continue
		}
		fmt.Fprintf(&b, "  %s %s (%s)\n", fail.Render("FAIL"), res.Name, res.Failure)
		fmt.Fprintf(&b, "       expected: %s\n", res.Expected)
		if res.Err != "" {
			fmt.Fprintf(&b, "       error:    %s\n", res.Err)
		}
		if res.Actual != "" {
			fmt.Fprintf(&b, "       output:\n%s\n", indent(res.Actual, "         "))
		}
	}

	failed := len(r.Failures())
	fmt.Fprintf(&b, "%d checks, %d failed\n", len(r.Results), failed)

	_, err := io.WriteString(w, b.String())
	return err
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
