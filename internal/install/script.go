// Package install finalizes an installed build: it writes the post-install
// registration script into the prefix and renders user guidance.
//
// The script is generated, never executed here. Running it is the user's
// decision because it needs elevated privileges.
package install

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"
)

// ScriptName is the post-install script's file name inside the prefix.
const ScriptName = "post_install.sh"

// ScriptMode is the script's permission bits.
const ScriptMode = 0o755

// scriptTemplate registers InstallPath in RegistryPath. The outer check
// keeps the common case free of sudo. Under elevation the check and the
// append run while holding a lock directory next to the registry, so two
// concurrent runs cannot both append.
const scriptTemplate = `#!/bin/sh
# Adds the shell to the system list of valid login shells.
# Safe to run more than once.
bin={{quote .InstallPath}}
shells={{quote .RegistryPath}}

if grep -qxF "$bin" "$shells" 2>/dev/null; then
  exit 0
fi

echo "Adding $bin to $shells..."
sudo=sudo
if [ "$(id -u)" -eq 0 ]; then
  sudo=
fi
$sudo sh -c '
  lock="$2.lock"
  tries=0
  until mkdir "$lock" 2>/dev/null; do
    tries=$((tries + 1))
    if [ "$tries" -ge 30 ]; then
      echo "timed out waiting for $lock" >&2
      exit 1
    fi
    sleep 1
  done
  trap "rmdir \"\$lock\"" EXIT
  trap "exit 1" INT TERM
  grep -qxF "$1" "$2" 2>/dev/null && exit 0
  if [ -s "$2" ] && [ -n "$(tail -c 1 "$2")" ]; then
    printf "\n" >> "$2"
  fi
  printf "%s\n" "$1" >> "$2"
' sh "$bin" "$shells"
`

var tmpl = template.Must(template.New(ScriptName).Funcs(template.FuncMap{
	"quote": func(s string) (string, error) {
		return syntax.Quote(s, syntax.LangPOSIX)
	},
}).Parse(scriptTemplate))

// ScriptData holds the template's substitution points.
type ScriptData struct {
	InstallPath  string
	RegistryPath string
}

// RenderScript renders the registration script and checks that the result
// parses as POSIX sh.
func RenderScript(data ScriptData) (string, error) {
	for name, p := range map[string]string{"install path": data.InstallPath, "registry path": data.RegistryPath} {
		if !filepath.IsAbs(p) {
			return "", fmt.Errorf("%s must be absolute, got %q", name, p)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render script: %w", err)
	}

	script := buf.String()
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(script), ScriptName); err != nil {
		return "", fmt.Errorf("generated script is not valid sh: %w", err)
	}
	return script, nil
}
