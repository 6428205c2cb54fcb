package mocks

import (
	"io"
	"io/fs"
	"os"

	"github.com/stretchr/testify/mock"
)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

// Save spools content under a fresh name
func (m *MockFileStorage) Save(content io.Reader) (string, error) {
	args := m.Called(content)
	return args.String(0), args.Error(1)
}

// Put writes content at key
func (m *MockFileStorage) Put(key string, content io.Reader) (int64, error) {
	args := m.Called(key, content)
	return args.Get(0).(int64), args.Error(1)
}

// Get opens a file by its path
func (m *MockFileStorage) Get(filePath string) (*os.File, error) {
	args := m.Called(filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*os.File), args.Error(1)
}

// Stat returns file info for a path
func (m *MockFileStorage) Stat(filePath string) (os.FileInfo, error) {
	args := m.Called(filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(os.FileInfo), args.Error(1)
}

// Delete removes a file by its path
func (m *MockFileStorage) Delete(filePath string) error {
	args := m.Called(filePath)
	return args.Error(0)
}

// Rename moves a stored file
func (m *MockFileStorage) Rename(from, to string) error {
	args := m.Called(from, to)
	return args.Error(0)
}

// Path resolves a relative path
func (m *MockFileStorage) Path(filePath string) (string, error) {
	args := m.Called(filePath)
	return args.String(0), args.Error(1)
}

// Walk visits stored files
func (m *MockFileStorage) Walk(fn func(relPath string, info fs.FileInfo) error) error {
	args := m.Called(fn)
	return args.Error(0)
}
