package ports

import (
	"os"
	"path/filepath"
	"strings"
)

// FileSystem provides the file operations used by the plugin subsystem.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Exists(path string) bool
	IsDir(path string) bool
	Remove(path string) error
	MkdirAll(path string, perm os.FileMode) error
	// ListFiles returns the sorted names of the regular files directly in dir.
	ListFiles(dir string) ([]string, error)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
