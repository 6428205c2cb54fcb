package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
)

// FileStorage defines the interface for file storage operations. Paths are
// always relative to the storage root.
type FileStorage interface {
	// Save spools content under a fresh random name and returns its path.
	Save(content io.Reader) (string, error)
	// Put writes content at key atomically: readers see either no file or
	// the complete file, never a partial write.
	Put(key string, content io.Reader) (int64, error)
	Get(filePath string) (*os.File, error)
	Stat(filePath string) (os.FileInfo, error)
	Delete(filePath string) error
	// Rename moves from to to, replacing to if it exists. A missing from
	// yields ErrFileNotFound.
	Rename(from, to string) error
	// Path resolves a relative path to an absolute one inside the root.
	Path(filePath string) (string, error)
	// Walk calls fn for every regular file under the root with its
	// slash-separated relative path.
	Walk(fn func(relPath string, info fs.FileInfo) error) error
}

// localStorage implements FileStorage using local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) (FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}
	return &localStorage{basePath: absBase}, nil
}

// validatePath ensures path is within basePath (prevents traversal)
func (s *localStorage) validatePath(filePath string) (string, error) {
	if filePath == "" || strings.ContainsAny(filePath, "\\:\x00") {
		return "", ErrPathTraversal
	}

	cleanPath := filepath.Clean(filePath)

	if filepath.IsAbs(cleanPath) {
		return "", ErrPathTraversal
	}

	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, cleanPath))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	// Security check: ensure file is within allowed directory
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// Save stores content under a UUID name and returns the relative path
func (s *localStorage) Save(content io.Reader) (string, error) {
	name := uuid.New().String()
	fullPath := filepath.Join(s.basePath, name)

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return name, nil
}

// Put writes content to a temporary file next to key and renames it into
// place.
func (s *localStorage) Put(key string, content io.Reader) (int64, error) {
	fullPath, err := s.validatePath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, content)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return n, nil
}

// Get opens a file by its path
func (s *localStorage) Get(filePath string) (*os.File, error) {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Stat returns file info for a path
func (s *localStorage) Stat(filePath string) (os.FileInfo, error) {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return info, nil
}

// Delete removes a file by its path. A missing file is not an error.
func (s *localStorage) Delete(filePath string) error {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Rename moves a file within the root
func (s *localStorage) Rename(from, to string) error {
	fromPath, err := s.validatePath(from)
	if err != nil {
		return err
	}
	toPath, err := s.validatePath(to)
	if err != nil {
		return err
	}

	if err := os.Rename(fromPath, toPath); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Path returns the absolute location of filePath
func (s *localStorage) Path(filePath string) (string, error) {
	return s.validatePath(filePath)
}

// Walk visits every regular file below the storage root
func (s *localStorage) Walk(fn func(relPath string, info fs.FileInfo) error) error {
	return filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A file removed mid-walk is not a failure.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info)
	})
}
