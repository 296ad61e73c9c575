package install

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Caveats is the post-install guidance shown after a successful install.
type Caveats struct {
	Name       string
	ScriptPath string
	BinaryPath string
	ConfigPath string
	DocsURL    string
	// IsLoginShell omits the chsh hint when the binary is already the
	// user's login shell.
	IsLoginShell bool
}

// Render writes the caveats to w. Styling follows w's terminal
// capabilities, so redirected output is plain text.
func (c Caveats) Render(w io.Writer) error {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true)
	command := r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FD7FF"})

	var b strings.Builder
	section := func(title, body string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(heading.Render(title))
		b.WriteString("\n  ")
		b.WriteString(command.Render(body))
		b.WriteString("\n")
	}

	section(fmt.Sprintf("To add %s to your system's list of shells:", c.Name), c.ScriptPath)
	if !c.IsLoginShell {
		section(fmt.Sprintf("To set %s as your default shell:", c.Name), "chsh -s "+c.BinaryPath)
	}
	if c.ConfigPath != "" {
		section("Configuration file location:", c.ConfigPath)
	}
	if c.DocsURL != "" {
		section("For more information, see:", c.DocsURL)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String returns the unstyled caveats.
func (c Caveats) String() string {
	var b strings.Builder
	c.Render(&b)
	return b.String()
}
