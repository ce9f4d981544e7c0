// Package storage defines the FileStore interface used for the template
// blob and the reference audio directory.
//
// Writes are atomic: data goes to a temporary file beside the target and
// replaces it on Close, so readers never observe a half-written file and a
// crash mid-write leaves the previous version intact.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. Parent directories are
	// created automatically. The new content replaces the old one only
	// when Close returns nil; Abort discards it.
	Write(ctx context.Context, path string) (Writer, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns (false, nil).
	Delete(ctx context.Context, path string) (bool, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of regular files matching any of the
	// doublestar patterns, in lexical order.
	List(ctx context.Context, patterns ...string) ([]string, error)

	// Path returns the filesystem location of the named file.
	Path(path string) string
}

// Writer is an in-progress atomic write. It is seekable so encoders that
// patch headers after the payload (such as WAV) can write directly.
type Writer interface {
	io.WriteCloser
	io.Seeker

	// Abort discards the written data. Calling Close after Abort is a
	// no-op.
	Abort() error
}
