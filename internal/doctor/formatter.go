package doctor

import (
	"fmt"
	"strings"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"

// FormatReport formats findings for display. OK findings are summarized on
// one line each; problems get their detail and hint.
func FormatReport(findings []Finding) string {
	var sb strings.Builder
	sb.Grow(512 + len(findings)*128)

	sb.WriteString("\n" + rule)
	sb.WriteString("DOCTOR REPORT\n")
	sb.WriteString(rule + "\n")

	problems, advisories := 0, 0
	for _, f := range findings {
		sb.WriteString(formatFinding(f))
		switch {
		case f.Status == StatusOK:
		case f.Status.Advisory():
			advisories++
		default:
			problems++
		}
	}

	sb.WriteString("\n" + rule)
	switch {
	case problems == 0 && advisories == 0:
		sb.WriteString("SUMMARY: Everything looks good ✓\n")
	case problems == 0:
		sb.WriteString(fmt.Sprintf("SUMMARY: Healthy, %d advisory\n", advisories))
	default:
		sb.WriteString(fmt.Sprintf("SUMMARY: %d problems, %d advisory\n", problems, advisories))
	}
	sb.WriteString(rule)

	return sb.String()
}

func formatFinding(f Finding) string {
	var sb strings.Builder
	if f.Status == StatusOK {
		sb.WriteString(fmt.Sprintf("[OK] %s: %s", f.Check, f.Subject))
		if f.Detail != "" {
			sb.WriteString(" (" + f.Detail + ")")
		}
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("[%s] %s\n", strings.ReplaceAll(f.Status.String(), "_", " "), f.Check))
	sb.WriteString(fmt.Sprintf("    %s\n", f.Subject))
	if f.Detail != "" {
		sb.WriteString(fmt.Sprintf("    %s\n", f.Detail))
	}
	if f.Hint != "" {
		sb.WriteString(fmt.Sprintf("    → %s\n", f.Hint))
	}
	return sb.String()
}
