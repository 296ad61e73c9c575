package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
	"github.com/Zixiao-System/leizi-formula/internal/platform"
)

// cli holds state shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	verbose    bool

	// newDetector is replaced in tests.
	newDetector func() platform.Detector
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr, newDetector: platform.NewDetector}

	root := &cobra.Command{
		Use:   "leizi-formula",
		Short: "Build, install and verify the Leizi shell",
		Long: `leizi-formula packages the Leizi shell.

It fetches the release source, drives the CMake build, installs the binary
under a prefix and writes post_install.sh, a script that registers the
binary in /etc/shells. The script is never run for you.

Examples:
  leizi-formula install --prefix /usr/local
  leizi-formula test --json
  leizi-formula doctor`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usage(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default is ~/.config/leizi-formula/config.yaml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.String("prefix", "", "install prefix (default /usr/local)")
	pf.String("formula", "", "formula file (default is the built-in Leizi formula)")
	pf.String("build-type", "", "CMake build type: Debug or Release")
	pf.String("registry-path", "", "shell registry file (default /etc/shells)")
	pf.String("cache-dir", "", "download and work directory")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Duration("build-timeout", 0, "timeout for each build step")
	pf.Duration("test-timeout", 0, "timeout for each verification check")
	pf.Duration("fetch-timeout", 0, "timeout for source downloads")

	root.AddCommand(
		c.newInstallCmd(),
		c.newTestCmd(),
		c.newRegisterCmd(),
		c.newCaveatsCmd(),
		c.newDoctorCmd(),
		c.newLivecheckCmd(),
		c.newFormulaCmd(),
		c.newVersionCmd(),
	)
	return root
}

// args wraps a cobra argument validator so violations exit with the usage
// status.
func args(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		return usage(v(cmd, a))
	}
}

// env is what a command needs after settings are resolved.
type env struct {
	settings *config.Settings
	logger   config.Logger
}

func (c *cli) load(cmd *cobra.Command) (*env, error) {
	settings, err := config.Load(config.LoadOptions{
		ConfigFile: c.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	level := settings.LogLevel
	if c.verbose {
		level = "debug"
	}
	return &env{settings: settings, logger: config.NewLogger(c.stderr, level)}, nil
}

// loadFormula returns the configured formula, or the built-in one.
func (c *cli) loadFormula(ctx context.Context, e *env) (*formula.Formula, error) {
	if e.settings.Formula == "" {
		return formula.Default(), nil
	}
	path, err := expandHome(e.settings.Formula)
	if err != nil {
		return nil, err
	}
	f, err := formula.NewParser(c.newDetector()).ParseFile(ctx, path)
	if err != nil {
		e.logger.Debug("formula error", "detail", formula.FormatError(err, true))
		return nil, err
	}
	return f, nil
}

// binaryPath returns the --binary flag or prefix/bin/<formula binary>.
func binaryPath(flag string, e *env, f *formula.Formula) (string, error) {
	if flag == "" {
		return filepath.Join(e.settings.Prefix, "bin", f.Binary), nil
	}
	path, err := expandHome(flag)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve binary path: %w", err)
	}
	return abs, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// redactHome replaces the home directory prefix with ~ in user-facing text.
func redactHome(s string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" || home == "/" {
		return s
	}
	return strings.ReplaceAll(s, home, "~")
}
