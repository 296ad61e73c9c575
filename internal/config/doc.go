// Package config resolves leizi-formula's tool settings and provides the
// Logger abstraction shared by every pipeline component.
//
// # Sources
//
// Settings are layered, lowest precedence first:
//   - built-in defaults (prefix /usr/local, /etc/shells)
//   - ~/.config/leizi-formula/config.yaml (or --config)
//   - LEIZI_FORMULA_* environment variables (dots become underscores,
//     e.g. LEIZI_FORMULA_TIMEOUTS_BUILD=45m)
//   - command-line flags
//
// extra_flags is a single shell-quoted string, split the way a POSIX shell
// would split it:
//
//	extra_flags: -DLEIZI_ENABLE_GIT=ON "-DCMAKE_C_FLAGS=-O2 -g"
//
// # Validation
//
// Load validates the result with go-playground/validator plus path checks;
// failures are reported as *SettingsError naming the offending key.
//
// # Logging
//
// Components accept a Logger. NewLogger returns a charmbracelet/log backed
// implementation; NopLogger discards output and is the default.
package config
