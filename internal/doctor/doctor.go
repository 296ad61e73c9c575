package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/install"
	"github.com/Zixiao-System/leizi-formula/internal/receipt"
	"github.com/Zixiao-System/leizi-formula/internal/registry"
)

// LoginShell reports whether a binary is the user's login shell.
type LoginShell interface {
	IsCurrent(ctx context.Context, binary string) bool
}

// Expected describes an install to examine.
type Expected struct {
	Prefix string
	// Binary is the executable's name under prefix/bin.
	Binary string
	// BuildDeps are tools that must be on PATH to rebuild.
	BuildDeps []string
}

// BinaryPath returns prefix/bin/<binary>.
func (e Expected) BinaryPath() string {
	return filepath.Join(e.Prefix, "bin", e.Binary)
}

// ScriptPath returns prefix/post_install.sh.
func (e Expected) ScriptPath() string {
	return filepath.Join(e.Prefix, install.ScriptName)
}

// Doctor runs the checks.
type Doctor struct {
	registry registry.ShellRegistry
	shell    LoginShell
	lookPath func(string) (string, error)
	logger   config.Logger
}

// New creates a Doctor. shell may be nil to skip the login shell check.
func New(reg registry.ShellRegistry, shell LoginShell, logger config.Logger) *Doctor {
	return &Doctor{
		registry: reg,
		shell:    shell,
		lookPath: exec.LookPath,
		logger:   config.OrNop(logger),
	}
}

// Run checks every aspect of exp and returns one finding per check, in a
// stable order. It only fails when ctx is done.
func (d *Doctor) Run(ctx context.Context, exp Expected) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binPath := exp.BinaryPath()
	findings := []Finding{
		d.checkBinary(binPath),
		d.checkScript(exp.ScriptPath()),
		d.checkReceipt(exp.Prefix),
		d.checkRegistry(ctx, binPath),
	}
	if d.shell != nil {
		findings = append(findings, d.checkLoginShell(ctx, binPath))
	}
	for _, dep := range exp.BuildDeps {
		findings = append(findings, d.checkBuildDep(dep))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Debug("doctor finished", "prefix", exp.Prefix, "findings", len(findings))
	return findings, nil
}

func (d *Doctor) checkBinary(path string) Finding {
	f := Finding{Check: CheckBinary, Subject: path}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.Status = StatusMissing
		f.Hint = "run leizi-formula install"
	case err != nil:
		f.Status = StatusUnknown
		f.Detail = err.Error()
	case !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0:
		f.Status = StatusNotExecutable
		f.Detail = fmt.Sprintf("mode %v", info.Mode())
		f.Hint = "reinstall, or chmod +x " + path
	default:
		f.Status = StatusOK
	}
	return f
}

func (d *Doctor) checkScript(path string) Finding {
	f := Finding{Check: CheckScript, Subject: path}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.Status = StatusMissing
		f.Hint = "run leizi-formula install"
	case err != nil:
		f.Status = StatusUnknown
		f.Detail = err.Error()
	case info.Mode().Perm() != install.ScriptMode:
		f.Status = StatusBadMode
		f.Detail = fmt.Sprintf("mode %04o, want %04o", info.Mode().Perm(), install.ScriptMode)
		f.Hint = fmt.Sprintf("chmod %o %s", install.ScriptMode, path)
	default:
		f.Status = StatusOK
	}
	return f
}

func (d *Doctor) checkReceipt(prefix string) Finding {
	f := Finding{Check: CheckReceipt, Subject: filepath.Join(prefix, receipt.FileName)}
	r, err := receipt.Load(prefix)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.Status = StatusMissing
		f.Detail = "not installed by leizi-formula"
	case err != nil:
		f.Status = StatusUnknown
		f.Detail = err.Error()
	case r.Completed():
		f.Status = StatusOK
		f.Detail = fmt.Sprintf("%s %s (%s)", r.Formula, r.FormulaVersion, r.BuildType)
	default:
		f.Status = StatusIncomplete
		if failed := r.FailedStage(); failed != nil {
			f.Detail = fmt.Sprintf("%s stage failed: %s", failed.Name, failed.LastError)
		} else {
			f.Detail = "install was interrupted"
		}
		f.Hint = "run leizi-formula install again"
	}
	return f
}

func (d *Doctor) checkRegistry(ctx context.Context, binPath string) Finding {
	f := Finding{Check: CheckRegistry, Subject: binPath}
	ok, err := d.registry.Contains(ctx, binPath)
	switch {
	case err != nil:
		f.Status = StatusUnknown
		f.Detail = err.Error()
	case ok:
		f.Status = StatusOK
	default:
		f.Status = StatusNotRegistered
		f.Hint = "run " + filepath.Join(filepath.Dir(filepath.Dir(binPath)), install.ScriptName)
	}
	return f
}

func (d *Doctor) checkLoginShell(ctx context.Context, binPath string) Finding {
	f := Finding{Check: CheckLoginShell, Subject: binPath}
	if d.shell.IsCurrent(ctx, binPath) {
		f.Status = StatusOK
		return f
	}
	f.Status = StatusNotLoginShell
	f.Hint = "chsh -s " + binPath
	return f
}

func (d *Doctor) checkBuildDep(name string) Finding {
	f := Finding{Check: CheckBuildDep, Subject: name}
	path, err := d.lookPath(name)
	if err != nil {
		f.Status = StatusMissing
		f.Detail = "not found in PATH"
		return f
	}
	f.Status = StatusOK
	f.Detail = path
	return f
}
