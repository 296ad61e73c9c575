package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func detectorWith(env map[string]string, parent string, parentErr error) *Detector {
	return &Detector{
		getenv: func(k string) string { return env[k] },
		parent: func(context.Context) (string, error) { return parent, parentErr },
	}
}

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		parent     string
		parentErr  error
		wantPath   string
		wantMethod string
	}{
		{"env wins", map[string]string{"SHELL": "/bin/zsh"}, "/bin/bash", nil, "/bin/zsh", MethodEnv},
		{"parent fallback", nil, "/usr/bin/fish", nil, "/usr/bin/fish", MethodParent},
		{"nothing", nil, "", errors.New("no such process"), "", MethodNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectorWith(tt.env, tt.parent, tt.parentErr).Detect(context.Background())
			if got.Path != tt.wantPath || got.Method != tt.wantMethod {
				t.Errorf("Detect() = %+v, want {%s %s}", got, tt.wantPath, tt.wantMethod)
			}
		})
	}
}

func TestDetector_IsCurrent(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "leizi")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "leizi-link")
	if err := os.Symlink(bin, link); err != nil {
		t.Fatal(err)
	}

	d := detectorWith(map[string]string{"SHELL": link}, "", errors.New("unused"))
	if !d.IsCurrent(context.Background(), bin) {
		t.Error("IsCurrent() = false for symlinked login shell")
	}
	if d.IsCurrent(context.Background(), "/bin/sh") {
		t.Error("IsCurrent() = true for a different shell")
	}

	none := detectorWith(nil, "", errors.New("none"))
	if none.IsCurrent(context.Background(), bin) {
		t.Error("IsCurrent() = true with no detected shell")
	}
}

func TestNewDetector_RealParent(t *testing.T) {
	t.Setenv("SHELL", "")
	det := NewDetector().Detect(context.Background())
	// The test binary's parent is go test or a shell; either way some
	// method must be reported.
	if det.Method == "" {
		t.Error("Method is empty")
	}
}
