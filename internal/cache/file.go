package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// FilePersister stores the cache as a single JSON object on disk.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for the given path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load reads the cache file. A missing file is an empty cache.
func (p *FilePersister) Load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", p.path, err)
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	return entries, nil
}

// Save rewrites the cache file in full.
func (p *FilePersister) Save(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	return nil
}
