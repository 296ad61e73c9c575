// Package testutil provides fixtures for testing leizi-formula in
// isolation: scoped environment variables and scripted stand-ins for the
// shell and for cmake.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the directories SetupTestEnv created.
type Env struct {
	Root     string
	Home     string
	Config   string
	Cache    string
	Prefix   string
	Registry string
}

// SetupTestEnv points HOME and every LEIZI_FORMULA_* location at a fresh
// temp tree so tests never touch the real prefix, cache or /etc/shells.
// The registry file starts with two stock shells.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	root := t.TempDir()
	env := &Env{
		Root:     root,
		Home:     filepath.Join(root, "home"),
		Config:   filepath.Join(root, "home", ".config", "leizi-formula"),
		Cache:    filepath.Join(root, "cache"),
		Prefix:   filepath.Join(root, "prefix"),
		Registry: filepath.Join(root, "etc", "shells"),
	}

	for _, dir := range []string{env.Home, env.Config, env.Cache, env.Prefix, filepath.Dir(env.Registry)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(env.Registry, []byte("/bin/sh\n/bin/bash\n"), 0o644); err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	t.Setenv("HOME", env.Home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(env.Home, ".config"))
	t.Setenv("XDG_CACHE_HOME", env.Cache)
	t.Setenv("LEIZI_FORMULA_PREFIX", env.Prefix)
	t.Setenv("LEIZI_FORMULA_CACHE_DIR", env.Cache)
	t.Setenv("LEIZI_FORMULA_REGISTRY_PATH", env.Registry)

	return env
}
