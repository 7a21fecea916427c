package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/apostle/internal/shared"
)

// FileName is the document [FileStore] keeps in its directory.
const FileName = "credentials.json"

// document is the on-disk layout of a [FileStore].
type document struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// FileStore keeps credentials in a JSON document inside a private directory.
type FileStore struct {
	kvStore
	f *fileKV
}

type fileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a [FileStore] rooted at dir.
// If dir is empty, uses ~/.apostle/
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".apostle")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	f := &fileKV{path: filepath.Join(dir, FileName)}
	return &FileStore{kvStore: kvStore{backend: f}, f: f}, nil
}

// Path returns the location of the credentials document.
func (s *FileStore) Path() string {
	return s.f.path
}

func (k *fileKV) get(key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	return v, nil
}

func (k *fileKV) setMany(pairs map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return err
	}
	for key, v := range pairs {
		doc.Values[key] = v
	}
	return k.save(doc)
}

func (k *fileKV) del(keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(doc.Values, key)
	}
	return k.save(doc)
}

// load returns an empty document when the file does not exist yet.
func (k *fileKV) load() (*document, error) {
	doc := &document{Version: 1, Values: make(map[string]string)}

	data, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return doc, nil
}

// save writes the document atomically.
func (k *fileKV) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tempPath := k.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	if err := os.Rename(tempPath, k.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}
