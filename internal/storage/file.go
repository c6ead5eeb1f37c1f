package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const stateFileName = "state.json"

// stateFile is the on-disk layout of a FileStore.
type stateFile struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// FileStore persists values in a single JSON file under baseDir. Writes go
// to a temp file first and are renamed into place.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

var _ Store = (*FileStore)(nil)

// StateDir resolves baseDir, defaulting to ~/.storesync, and makes sure it
// exists with owner only permissions.
func StateDir(baseDir string) (string, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".storesync")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return baseDir, nil
}

// NewFileStore creates a file store.
// If baseDir is empty, uses ~/.storesync/
func NewFileStore(baseDir string) (*FileStore, error) {
	baseDir, err := StateDir(baseDir)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("file store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.baseDir, stateFileName)
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	val, ok := state.Values[key]
	return val, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.Values[key] = value
	return s.save(state)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	if _, ok := state.Values[key]; !ok {
		return nil
	}
	delete(state.Values, key)
	return s.save(state)
}

// load reads the state file. A missing, unreadable or malformed file reads
// as empty so a corrupted state never blocks startup.
func (s *FileStore) load() *stateFile {
	empty := &stateFile{Version: 1, Values: make(map[string]string)}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.Path()).Msg("failed to read state file, treating as empty")
		}
		return empty
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Str("path", s.Path()).Msg("malformed state file, treating as empty")
		return empty
	}

	if state.Values == nil {
		state.Values = make(map[string]string)
	}

	return &state
}

func (s *FileStore) save(state *stateFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := s.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}
