// Package mocks provides test doubles for the ports interfaces.
package mocks

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// FileSystem is a thread-safe in-memory ports.FileSystem.
type FileSystem struct {
	mu         sync.RWMutex
	files      map[string][]byte
	dirs       map[string]bool
	readErrors map[string]error
	reads      map[string]int
}

// NewFileSystem creates an empty FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files:      make(map[string][]byte),
		dirs:       make(map[string]bool),
		readErrors: make(map[string]error),
		reads:      make(map[string]int),
	}
}

// AddFile adds a file to the mock filesystem.
func (fs *FileSystem) AddFile(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[filepath.Clean(path)] = []byte(content)
}

// SetReadError makes subsequent reads of path fail with err.
func (fs *FileSystem) SetReadError(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.readErrors[filepath.Clean(path)] = err
}

// ReadCount returns how many times path was read.
func (fs *FileSystem) ReadCount(path string) int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.reads[filepath.Clean(path)]
}

// Files returns the sorted paths of all files.
func (fs *FileSystem) Files() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ReadFile reads a file from the mock filesystem.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.reads[path]++

	if err, ok := fs.readErrors[path]; ok {
		return nil, err
	}
	content, ok := fs.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, iofs.ErrNotExist)
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// WriteFile writes a file to the mock filesystem.
func (fs *FileSystem) WriteFile(path string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	fs.files[filepath.Clean(path)] = buf
	return nil
}

// Exists reports whether a file or directory exists.
func (fs *FileSystem) Exists(path string) bool {
	path = filepath.Clean(path)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, isFile := fs.files[path]
	return isFile || fs.dirs[path]
}

// IsDir reports whether path is a directory.
func (fs *FileSystem) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.dirs[filepath.Clean(path)]
}

// Remove deletes a file or directory.
func (fs *FileSystem) Remove(path string) error {
	path = filepath.Clean(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; ok {
		delete(fs.files, path)
		return nil
	}
	if fs.dirs[path] {
		delete(fs.dirs, path)
		return nil
	}
	return fmt.Errorf("remove %s: %w", path, iofs.ErrNotExist)
}

// MkdirAll records path and its parents as directories.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		fs.dirs[p] = true
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return nil
}

// ListFiles returns the sorted names of files directly in dir.
func (fs *FileSystem) ListFiles(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	names := make([]string, 0)
	for p := range fs.files {
		if filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	if len(names) == 0 && !fs.dirs[dir] {
		return nil, fmt.Errorf("open %s: %w", dir, iofs.ErrNotExist)
	}
	sort.Strings(names)
	return names, nil
}

var _ ports.FileSystem = (*FileSystem)(nil)
