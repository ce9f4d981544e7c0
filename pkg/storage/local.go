package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Local implements FileStore on top of the local filesystem.
// All paths are resolved relative to the configured root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute store root.
func (l *Local) Root() string { return l.root }

// Path turns a storage path into an absolute filesystem path.
func (l *Local) Path(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Read opens the named file for reading.
func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.Path(path))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Write starts an atomic write of the named file.
func (l *Local) Write(_ context.Context, path string) (Writer, error) {
	full := l.Path(path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicFile{f: f, target: full}, nil
}

// Delete removes the named file.
func (l *Local) Delete(_ context.Context, path string) (bool, error) {
	err := os.Remove(l.Path(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.Path(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List returns regular files under the root matching any pattern.
// Temporary files left by interrupted writes are never listed.
func (l *Local) List(_ context.Context, patterns ...string) ([]string, error) {
	fsys := os.DirFS(l.root)
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("storage: invalid pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("storage: glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || isTemp(m) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out, nil
}

func isTemp(path string) bool {
	base := filepath.Base(path)
	matched, _ := filepath.Match(".*.tmp-*", base)
	return matched
}

// atomicFile writes to a temporary file and renames it over the target on
// Close.
type atomicFile struct {
	f      *os.File
	target string
	err    error
	done   bool
}

func (a *atomicFile) Write(p []byte) (int, error) {
	if a.done {
		return 0, os.ErrClosed
	}
	n, err := a.f.Write(p)
	if err != nil && a.err == nil {
		a.err = err
	}
	return n, err
}

func (a *atomicFile) Seek(offset int64, whence int) (int64, error) {
	if a.done {
		return 0, os.ErrClosed
	}
	return a.f.Seek(offset, whence)
}

func (a *atomicFile) Close() error {
	if a.done {
		return nil
	}
	a.done = true
	if a.err != nil {
		a.discard()
		return a.err
	}
	if err := a.f.Sync(); err != nil {
		a.discard()
		return err
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.f.Name())
		return err
	}
	if err := os.Rename(a.f.Name(), a.target); err != nil {
		os.Remove(a.f.Name())
		return err
	}
	return nil
}

func (a *atomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	return a.discard()
}

func (a *atomicFile) discard() error {
	a.f.Close()
	return os.Remove(a.f.Name())
}
