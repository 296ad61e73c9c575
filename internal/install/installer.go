package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Zixiao-System/leizi-formula/internal/build"
	"github.com/Zixiao-System/leizi-formula/internal/config"
)

// Script is a written post-install script.
type Script struct {
	Path    string
	Content string
	Mode    fs.FileMode
}

// InstallError reports a failed installer operation.
type InstallError struct {
	Path  string
	Op    string
	Cause error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *InstallError) Unwrap() error {
	return e.Cause
}

// ErrNotExecutable is returned when the installed binary lacks execute bits.
var ErrNotExecutable = errors.New("binary is not executable")

// Installer writes the post-install script.
type Installer struct {
	registryPath string
	logger       config.Logger
}

// NewInstaller creates an installer whose script registers binaries in
// registryPath (normally /etc/shells).
func NewInstaller(registryPath string, logger config.Logger) *Installer {
	return &Installer{registryPath: registryPath, logger: config.OrNop(logger)}
}

// Install checks that artifact's binary is in place and writes
// prefix/post_install.sh with mode 0755. It never runs the script and
// never escalates privileges.
func (i *Installer) Install(artifact *build.Artifact, prefix string) (*Script, error) {
	info, err := os.Stat(prefix)
	if err != nil {
		return nil, &InstallError{Path: prefix, Op: "stat prefix", Cause: err}
	}
	if !info.IsDir() {
		return nil, &InstallError{Path: prefix, Op: "stat prefix", Cause: fmt.Errorf("not a directory")}
	}

	if err := checkExecutable(artifact.BinaryPath); err != nil {
		return nil, &InstallError{Path: artifact.BinaryPath, Op: "check binary", Cause: err}
	}

	content, err := RenderScript(ScriptData{InstallPath: artifact.BinaryPath, RegistryPath: i.registryPath})
	if err != nil {
		return nil, &InstallError{Path: artifact.BinaryPath, Op: "render script", Cause: err}
	}

	path := filepath.Join(prefix, ScriptName)
	if err := writeExecutable(path, []byte(content)); err != nil {
		return nil, &InstallError{Path: path, Op: "write script", Cause: err}
	}

	i.logger.Info("wrote post-install script", "path", path)
	return &Script{Path: path, Content: content, Mode: ScriptMode}, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if info.Mode().Perm()&0o111 == 0 {
		return ErrNotExecutable
	}
	return nil
}

// writeExecutable writes data to path via a temp file and rename. The mode
// is set with chmod so the process umask cannot narrow it.
func writeExecutable(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".post_install-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, ScriptMode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
