// Package dirs resolves the per-user directories ytdash reads and writes,
// following the XDG base directory layout on every platform.
package dirs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "ytdash"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// ConfigDir holds config.{yaml,toml,json}.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// StateDir holds the download history database.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// CacheDir is the root for per-operation working directories.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// HistoryPath is the bbolt file backing download history.
func HistoryPath() string {
	return filepath.Join(StateDir(), "history.db")
}

// TempBaseDir returns the base directory for per-operation workdirs.
func TempBaseDir() string {
	return filepath.Join(CacheDir(), "temp")
}

// DefaultOutputDir is the user's download directory, or the working
// directory when the platform reports none.
func DefaultOutputDir() string {
	if d := xdg.UserDirs.Download; d != "" {
		return d
	}
	return "."
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll ensures config, state and cache dirs exist.
func EnsureAll() error {
	for _, p := range []string{ConfigDir(), StateDir(), TempBaseDir()} {
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
