package prefs

import (
	"os"
	"sync"

	"github.com/dn51/speedtracker/pkg/file"
)

// Store persists small scalar preferences across launches.
type Store interface {
	GetInt(key string, defaultValue int) int
	PutInt(key string, value int) error
}

// FileStore is a Store backed by a JSON file, written atomically on every put.
type FileStore struct {
	prefsFile string
	fileOps   file.FileOperations

	mu     sync.Mutex
	values map[string]int
}

// NewFileStore initializes a FileStore and loads any persisted values.
func NewFileStore(prefsFile string, fileOps file.FileOperations) (*FileStore, error) {
	s := &FileStore{
		prefsFile: prefsFile,
		fileOps:   fileOps,
		values:    make(map[string]int),
	}

	err := fileOps.ReadJsonFile(prefsFile, &s.values)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if s.values == nil {
		s.values = make(map[string]int)
	}

	return s, nil
}

// GetInt returns the stored value for key, or defaultValue when absent.
func (s *FileStore) GetInt(key string, defaultValue int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	return defaultValue
}

// PutInt stores the value for key and writes the file back.
func (s *FileStore) PutInt(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.fileOps.WriteJsonFile(s.prefsFile, s.values)
}
