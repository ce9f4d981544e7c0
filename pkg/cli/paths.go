package cli

import (
	"os"
	"path/filepath"
)

// ActivityLogFile is the activity log mirror file name.
const ActivityLogFile = "activity.log"

// Paths provides access to the per-app directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base giztoy directory (~/.giztoy)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.giztoy/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.giztoy/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// LogDir returns the log directory (~/.giztoy/<app>/logs)
func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}

// TempDir returns the transcoding scratch directory (~/.giztoy/<app>/tmp)
func (p *Paths) TempDir() string {
	return filepath.Join(p.AppDir(), "tmp")
}

// EnsureLogDir creates the log directory if it doesn't exist
func (p *Paths) EnsureLogDir() error {
	return os.MkdirAll(p.LogDir(), 0755)
}

// EnsureTempDir creates the scratch directory if it doesn't exist
func (p *Paths) EnsureTempDir() error {
	return os.MkdirAll(p.TempDir(), 0755)
}

// LogPath returns a path within the log directory
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogDir(), name)
}

// ActivityLog returns the activity log mirror path.
func (p *Paths) ActivityLog() string {
	return p.LogPath(ActivityLogFile)
}
