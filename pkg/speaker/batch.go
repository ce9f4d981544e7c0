package speaker

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// FileError is a per-file auto-registration failure.
type FileError struct {
	Path   string `json:"path"`
	UserID string `json:"user_id"`
	Err    error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Report summarizes an auto-registration run.
type Report struct {
	Total      int         `json:"total"`
	Registered []string    `json:"registered"`
	Failed     []FileError `json:"failed,omitempty"`
}

// Progress is emitted after each file of an auto-registration run.
type Progress struct {
	Done   int
	Total  int
	Path   string
	UserID string
	Err    error
}

// UserIDFromFile returns the file stem used as user id.
func UserIDFromFile(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// AutoRegisterDirectory enrolls every file in the reference directory that
// matches the include patterns, using the file stem as user id. Failures
// are recorded per file and do not stop the run. ctx is checked between
// files; on cancellation the partial report is returned with ctx.Err().
func (c *Controller) AutoRegisterDirectory(ctx context.Context, progress func(Progress)) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rep Report
	files, err := c.refs.List(ctx, c.include...)
	if err != nil {
		c.log.Error("Auto-registration failed: %v", err)
		return rep, err
	}
	rep.Total = len(files)
	c.log.Info("Auto-registering %d file(s) from %s", len(files), c.refs.Path(""))

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			c.log.Warn("Auto-registration cancelled after %d of %d file(s)", i, len(files))
			return rep, err
		}
		id := UserIDFromFile(name)
		err := c.registerFileLocked(ctx, c.refs.Path(name), id)
		if err != nil {
			rep.Failed = append(rep.Failed, FileError{Path: name, UserID: id, Err: err})
		} else {
			rep.Registered = append(rep.Registered, id)
		}
		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(files), Path: name, UserID: id, Err: err})
		}
	}

	c.log.Info("Total auto-registered speakers: %d (failed: %d)", len(rep.Registered), len(rep.Failed))
	return rep, nil
}

// RegisterFile enrolls a single reference directory file by name. It is
// used by the directory watcher.
func (c *Controller) RegisterFile(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerFileLocked(ctx, c.refs.Path(name), UserIDFromFile(name))
}

func (c *Controller) registerFileLocked(ctx context.Context, fullPath, id string) error {
	if err := ValidateUserID(id); err != nil {
		c.log.Error("Failed to register %s: %v", fullPath, err)
		return err
	}
	clip, err := c.norm.NormalizeFile(fullPath)
	if err != nil {
		c.log.Error("Failed to register %s: %v", id, err)
		return err
	}
	_, err = c.enrollLocked(ctx, clip, fullPath, id, "Auto-registered")
	return err
}
