// Package registry maintains the system list of valid login shells
// (/etc/shells): whole-line membership checks and append-only,
// duplicate-free registration.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ShellRegistry is the list of permitted login shells.
type ShellRegistry interface {
	// Contains reports whether path appears as a whole line.
	Contains(ctx context.Context, path string) (bool, error)
	// Append adds path unless it is already present. Implementations
	// must re-check under exclusion so concurrent appends never duplicate.
	Append(ctx context.Context, path string) error
}

// FileRegistry is a ShellRegistry backed by a newline-separated file.
type FileRegistry struct {
	fs   afero.Fs
	path string
	// mu serializes appends within this process; flock covers other
	// processes when the file has a descriptor.
	mu sync.Mutex
}

// NewFileRegistry creates a registry over path on fs.
func NewFileRegistry(fs afero.Fs, path string) *FileRegistry {
	return &FileRegistry{fs: fs, path: path}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Entries returns the registry's non-blank, non-comment lines.
func (r *FileRegistry) Entries(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}

// Contains reports whether path is a whole line of the registry. A missing
// registry file contains nothing.
func (r *FileRegistry) Contains(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read registry: %w", err)
	}
	return hasLine(data, path), nil
}

// Append adds path as a new last line unless it is already present. It
// never reorders or removes existing lines, and terminates a final line
// that lacks a newline before appending.
func (r *FileRegistry) Append(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.OpenFile(r.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	unlock, err := lockFile(f)
	if err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer unlock()

	// Re-read under the lock: another process may have appended since
	// the caller's Contains check.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek registry: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if hasLine(data, path) {
		return nil
	}

	var buf bytes.Buffer
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(path)
	buf.WriteByte('\n')

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append to registry: %w", err)
	}
	return f.Sync()
}

// hasLine reports whether entry equals some line of data exactly, the way
// grep -qxF does.
func hasLine(data []byte, entry string) bool {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if string(line) == entry {
			return true
		}
	}
	return false
}

// ValidateEntry checks that path can be stored as a registry line.
func ValidateEntry(path string) error {
	switch {
	case path == "":
		return errors.New("path is empty")
	case !filepath.IsAbs(path):
		return fmt.Errorf("path %q is not absolute", path)
	case strings.ContainsAny(path, "\n\r\x00"):
		return fmt.Errorf("path %q contains a line break or NUL", path)
	case filepath.Clean(path) != path:
		return fmt.Errorf("path %q is not clean", path)
	}
	return nil
}
