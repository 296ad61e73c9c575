package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ShellOptions controls the behavior of a fake shell.
type ShellOptions struct {
	// Version is printed as "Leizi Shell <Version>". Default "1.4.0".
	Version string
	// VersionOutput replaces the whole --version line when set.
	VersionOutput string
	// VersionExit is the --version exit status.
	VersionExit int
	// NoArrays makes the array builtin unknown.
	NoArrays bool
	// NoEcho makes echo print nothing.
	NoEcho bool
	// NoColor prints the array confirmation without ANSI colors.
	NoColor bool
	// HangSeconds makes the shell sleep before doing anything.
	HangSeconds int
}

// ShellScript returns a POSIX sh program that imitates the shell's
// observable behavior: --version, echo, array and exit.
func ShellScript(opts ShellOptions) string {
	version := opts.Version
	if version == "" {
		version = "1.4.0"
	}
	versionLine := "Leizi Shell " + version
	if opts.VersionOutput != "" {
		versionLine = opts.VersionOutput
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if opts.HangSeconds > 0 {
		fmt.Fprintf(&b, "sleep %d\n", opts.HangSeconds)
	}
	fmt.Fprintf(&b, `case "$1" in
--version|-v)
  printf '%%s\n' '%s'
  exit %d
  ;;
esac
`, strings.ReplaceAll(versionLine, "'", `'\''`), opts.VersionExit)

	echo := `printf '%s\n' "${line#echo }"`
	if opts.NoEcho {
		echo = ":"
	}
	fmt.Fprintf(&b, `while IFS= read -r line; do
  case "$line" in
  exit)
    exit 0
    ;;
  "echo "*)
    %s
    ;;
`, echo)
	if !opts.NoArrays {
		colorOn, colorOff := `\033[1;32m`, `\033[0m`
		if opts.NoColor {
			colorOn, colorOff = "", ""
		}
		fmt.Fprintf(&b, `  "array "*)
    rest=${line#array }
    name=${rest%%%%=*}
    items=${rest#*=\(}
    items=${items%%\)}
    set -- $items
    printf '%sArray %%s created with %%d elements%s\n' "$name" "$#"
    ;;
`, colorOn, colorOff)
	}
	b.WriteString(`  *)
    printf 'leizi: command not found: %s\n' "$line" >&2
    ;;
  esac
done
`)
	return b.String()
}

// WriteShell writes a fake shell named leizi into dir and returns its path.
func WriteShell(t *testing.T, dir string, opts ShellOptions) string {
	t.Helper()
	path := filepath.Join(dir, "leizi")
	if err := os.WriteFile(path, []byte(ShellScript(opts)), 0o755); err != nil {
		t.Fatalf("failed to create fake shell: %v", err)
	}
	return path
}

// CMakeOptions controls a fake cmake.
type CMakeOptions struct {
	// FailStage is "configure", "build" or "install"; that step exits 1
	// with a CMake-style error on stderr.
	FailStage string
	// Shell is installed as <prefix>/bin/leizi by the install step.
	Shell ShellOptions
}

// FakeCMake is a scripted cmake that records every invocation.
type FakeCMake struct {
	Path string
	Log  string
}

// Calls returns the recorded argument lines, one per invocation.
func (f *FakeCMake) Calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.Log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read cmake log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// WriteCMake writes a fake cmake into dir. Configure remembers the install
// prefix in the build directory; install copies a fake shell there.
func WriteCMake(t *testing.T, dir string, opts CMakeOptions) *FakeCMake {
	t.Helper()

	shellSrc := filepath.Join(dir, "leizi.fake")
	if err := os.WriteFile(shellSrc, []byte(ShellScript(opts.Shell)), 0o755); err != nil {
		t.Fatalf("failed to write fake shell: %v", err)
	}

	fake := &FakeCMake{Path: filepath.Join(dir, "cmake"), Log: filepath.Join(dir, "cmake.log")}
	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$*" >> '%s'
fail='%s'
case "$1" in
--build) stage=build ;;
--install) stage=install ;;
*) stage=configure ;;
esac
if [ "$stage" = "$fail" ]; then
  echo "CMake Error: simulated $stage failure" >&2
  exit 1
fi
case "$stage" in
configure)
  build=""
  prefix=""
  while [ $# -gt 0 ]; do
    case "$1" in
    -B) build=$2; shift ;;
    -DCMAKE_INSTALL_PREFIX=*) prefix=${1#-DCMAKE_INSTALL_PREFIX=} ;;
    esac
    shift
  done
  mkdir -p "$build" && printf '%%s' "$prefix" > "$build/prefix"
  ;;
build)
  touch "$2/leizi"
  ;;
install)
  prefix=$(cat "$2/prefix")
  mkdir -p "$prefix/bin" && cp '%s' "$prefix/bin/leizi" && chmod 755 "$prefix/bin/leizi"
  ;;
esac
`, fake.Log, opts.FailStage, shellSrc)

	if err := os.WriteFile(fake.Path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake cmake: %v", err)
	}
	return fake
}
