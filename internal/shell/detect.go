package shell

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

// Detection methods.
const (
	MethodEnv    = "$SHELL environment variable"
	MethodParent = "parent process"
	MethodNone   = "detection failed"
)

// Detection is the result of login shell detection.
type Detection struct {
	// Path is the shell binary; empty when detection failed.
	Path   string
	Method string
}

// Detector finds the user's login shell.
type Detector struct {
	getenv func(string) string
	parent func(ctx context.Context) (string, error)
}

// NewDetector creates a detector that reads $SHELL and falls back to the
// parent process executable.
func NewDetector() *Detector {
	return &Detector{getenv: os.Getenv, parent: parentExe}
}

// Detect returns the login shell. It never fails; an undetectable shell is
// reported with MethodNone.
func (d *Detector) Detect(ctx context.Context) Detection {
	if sh := d.getenv("SHELL"); sh != "" {
		return Detection{Path: sh, Method: MethodEnv}
	}
	if exe, err := d.parent(ctx); err == nil && exe != "" {
		return Detection{Path: exe, Method: MethodParent}
	}
	return Detection{Method: MethodNone}
}

// IsCurrent reports whether binary is the detected login shell, resolving
// symlinks on both sides.
func (d *Detector) IsCurrent(ctx context.Context, binary string) bool {
	det := d.Detect(ctx)
	if det.Path == "" {
		return false
	}
	return SamePath(det.Path, binary)
}

// SamePath compares two paths after cleaning and resolving symlinks where
// possible.
func SamePath(a, b string) bool {
	return resolve(a) == resolve(b)
}

func resolve(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}

func parentExe(ctx context.Context) (string, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
	if err != nil {
		return "", err
	}
	return proc.ExeWithContext(ctx)
}
