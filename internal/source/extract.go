package source

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrIllegalPath is returned for archive entries that would land outside
// the destination directory.
var ErrIllegalPath = errors.New("illegal path in archive")

// ExtractTarGz extracts a .tar.gz archive into destDir, dropping the first
// strip path components of every entry. GitHub source tarballs wrap
// everything in "<repo>-<version>/", so callers pass strip=1.
func ExtractTarGz(archivePath, destDir string, strip int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	root := filepath.Clean(destDir)

	var links []string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return checkLinks(root, links)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if hasDotDot(header.Name) {
			return fmt.Errorf("%w: %s", ErrIllegalPath, header.Name)
		}
		name, ok := stripComponents(header.Name, strip)
		if !ok {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if !within(root, target) {
			return fmt.Errorf("%w: %s", ErrIllegalPath, header.Name)
		}
		if err := checkNoLinkInPath(root, target); err != nil {
			return fmt.Errorf("%w: %s", err, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", name, err)
			}

		case tar.TypeReg:
			if err := writeEntry(tr, target, os.FileMode(header.Mode)&0o777); err != nil {
				return fmt.Errorf("write file %s: %w", name, err)
			}

		case tar.TypeSymlink:
			resolved := header.Linkname
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(filepath.Dir(target), resolved)
			}
			if filepath.IsAbs(header.Linkname) || !within(root, resolved) {
				return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", name, err)
			}
			links = append(links, target)

		default:
			// pax headers, hard links and devices are not part of a source tree
		}
	}
}

// checkNoLinkInPath rejects a target that is, or sits below, a symlink
// already extracted under root. Writing through such a path would follow
// the link.
func checkNoLinkInPath(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return ErrIllegalPath
	}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: path crosses symlink %s", ErrIllegalPath, current)
		}
	}
	return nil
}

// checkLinks resolves every extracted symlink once the tree is complete.
// A chain of links can escape root even when each link looks harmless on
// its own. Dangling links are left alone.
func checkLinks(root string, links []string) error {
	if len(links) == 0 {
		return nil
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve dest dir: %w", err)
	}
	for _, link := range links {
		resolved, err := filepath.EvalSymlinks(link)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: symlink %s: %v", ErrIllegalPath, link, err)
		}
		if !within(realRoot, resolved) {
			return fmt.Errorf("%w: symlink %s resolves outside the source tree", ErrIllegalPath, link)
		}
	}
	return nil
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stripComponents removes the first n slash-separated components of name.
// ok is false when nothing remains.
func stripComponents(name string, n int) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return "", false
		}
		name = name[idx+1:]
	}
	return name, name != ""
}

func hasDotDot(name string) bool {
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
