// Package cache provides the write-through key-value store shared
// across collector runs.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/latamaq/latamaq/internal/airquality"
)

// Persister loads and saves the full cache contents. Injected so
// lookups can be unit tested without disk I/O.
type Persister interface {
	Load() (map[string]json.RawMessage, error)
	Save(entries map[string]json.RawMessage) error
}

// Store is a string-keyed cache of previously fetched results: full
// city rows, enrichment numbers, and explicit "looked up, found
// nothing" markers. Entries are never invalidated within a run; every
// put rewrites the backing file in full, so an interrupted run loses at
// most one pending update.
type Store struct {
	mu        sync.Mutex
	persister Persister
	entries   map[string]json.RawMessage
	logger    zerolog.Logger
}

// Open loads the full cache through the persister. A missing backing
// file yields an empty store.
func Open(p Persister, logger zerolog.Logger) (*Store, error) {
	entries, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}

	logger.Debug().Int("entries", len(entries)).Msg("cache loaded")

	return &Store{
		persister: p,
		entries:   entries,
		logger:    logger,
	}, nil
}

// Float looks up a numeric entry. ok reports whether the key has been
// looked up before; a present key with a null or unparseable value
// yields (nil, true), which callers treat as "known to have no data"
// and must not refetch.
func (s *Store) Float(key string) (value *float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, present := s.entries[key]
	if !present {
		return nil, false
	}

	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, true
	}
	return f, true
}

// PutFloat stores a numeric entry (nil records explicit absence) and
// flushes the cache to the backing file.
func (s *Store) PutFloat(key string, value *float64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	return s.put(key, raw)
}

// Row looks up a cached city row. The same absent-versus-null
// distinction as Float applies.
func (s *Store) Row(key string) (row *airquality.CityRow, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, present := s.entries[key]
	if !present {
		return nil, false
	}

	var r *airquality.CityRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, true
	}
	return r, true
}

// PutRow stores a fully assembled city row and flushes the cache.
func (s *Store) PutRow(key string, row *airquality.CityRow) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	return s.put(key, raw)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) put(key string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = raw

	if err := s.persister.Save(s.entries); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	return nil
}
