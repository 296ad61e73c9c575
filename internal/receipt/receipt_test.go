package receipt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	r := New("leizi", "1.4.0", "Release", "/usr/local", t0)

	if r.Version != SchemaVersion {
		t.Errorf("Version = %d, want %d", r.Version, SchemaVersion)
	}
	if r.ID == "" {
		t.Error("expected non-empty ID")
	}
	if len(r.Stages) != len(Stages) {
		t.Fatalf("got %d stages, want %d", len(r.Stages), len(Stages))
	}
	for i, s := range r.Stages {
		if s.Name != Stages[i] {
			t.Errorf("stage %d = %q, want %q", i, s.Name, Stages[i])
		}
		if s.State != StatePending {
			t.Errorf("stage %s state = %s, want pending", s.Name, s.State)
		}
	}
	if r.Completed() {
		t.Error("new receipt must not be completed")
	}

	other := New("leizi", "1.4.0", "Release", "/usr/local", t0)
	if other.ID == r.ID {
		t.Error("receipt IDs must be unique")
	}
}

func TestStageTransitions(t *testing.T) {
	r := New("leizi", "1.4.0", "Release", "/usr/local", t0)

	if err := r.Start(StageFetch, t0.Add(time.Second)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := r.StateOf(StageFetch); got != StateInProgress {
		t.Errorf("fetch state = %s, want in_progress", got)
	}
	if err := r.Finish(StageFetch, t0.Add(2*time.Second), nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got := r.StateOf(StageFetch); got != StateCompleted {
		t.Errorf("fetch state = %s, want completed", got)
	}

	r.Start(StageConfigure, t0.Add(3*time.Second))
	r.Finish(StageConfigure, t0.Add(4*time.Second), errors.New("cmake exited 1"))

	failed := r.FailedStage()
	if failed == nil || failed.Name != StageConfigure {
		t.Fatalf("FailedStage() = %+v, want configure", failed)
	}
	if failed.LastError != "cmake exited 1" {
		t.Errorf("LastError = %q", failed.LastError)
	}
	if !r.UpdatedAt.Equal(t0.Add(4 * time.Second)) {
		t.Errorf("UpdatedAt = %v", r.UpdatedAt)
	}

	// Restarting a failed stage clears its error.
	r.Start(StageConfigure, t0.Add(5*time.Second))
	if r.FailedStage() != nil {
		t.Error("restarted stage should no longer be failed")
	}
}

func TestUnknownStage(t *testing.T) {
	r := New("leizi", "1.4.0", "Release", "/usr/local", t0)
	if err := r.Start("package", t0); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("Start() error = %v, want ErrUnknownStage", err)
	}
	if err := r.Finish("package", t0, nil); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("Finish() error = %v, want ErrUnknownStage", err)
	}
	if got := r.StateOf("package"); got != "" {
		t.Errorf("StateOf() = %q, want empty", got)
	}
}

func TestCompleted(t *testing.T) {
	r := New("leizi", "1.4.0", "Release", "/usr/local", t0)
	for _, name := range Stages {
		r.Start(name, t0)
		r.Finish(name, t0, nil)
	}
	if !r.Completed() {
		t.Error("all stages completed, Completed() = false")
	}

	empty := &Receipt{}
	if empty.Completed() {
		t.Error("receipt with no stages must not be completed")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prefix")
	r := New("leizi", "1.4.0", "Debug", dir, t0)
	r.Method = "tarball"
	r.SourceDigest = strings.Repeat("a", 64)
	r.ExtraFlags = []string{"-DLEIZI_ENABLE_GIT=ON"}
	r.Start(StageFetch, t0)
	r.Finish(StageFetch, t0.Add(time.Minute), nil)

	if err := r.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("receipt not written: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "formula = 'leizi'") && !strings.Contains(string(data), `formula = "leizi"`) {
		t.Errorf("receipt is not TOML with a formula key:\n%s", data)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ID != r.ID || loaded.Formula != "leizi" || loaded.BuildType != "Debug" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.StateOf(StageFetch) != StateCompleted {
		t.Errorf("fetch state = %s", loaded.StateOf(StageFetch))
	}
	if len(loaded.ExtraFlags) != 1 || loaded.ExtraFlags[0] != "-DLEIZI_ENABLE_GIT=ON" {
		t.Errorf("ExtraFlags = %v", loaded.ExtraFlags)
	}
	if !loaded.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, t0)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+FileName) {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	r := New("leizi", "1.4.0", "Release", dir, t0)
	if err := r.Save(dir); err != nil {
		t.Fatal(err)
	}
	r.Start(StageFetch, t0)
	r.Finish(StageFetch, t0, errors.New("boom"))
	if err := r.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.StateOf(StageFetch) != StateFailed {
		t.Errorf("fetch state = %s, want failed", loaded.StateOf(StageFetch))
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(t.TempDir())
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() error = %v, want ErrNotExist", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName), []byte("version = [unterminated"), 0o644)
		if _, err := Load(dir); err == nil {
			t.Error("expected error for malformed receipt")
		}
	})

	t.Run("newer schema", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName), []byte("version = 99\n"), 0o644)
		_, err := Load(dir)
		if err == nil || !strings.Contains(err.Error(), "newer") {
			t.Errorf("Load() error = %v, want schema version error", err)
		}
	})
}
