package cache

import "encoding/json"

// MemoryPersister keeps cache contents in memory. Used by tests and by
// runs that want memoization without a backing file.
type MemoryPersister struct {
	entries map[string]json.RawMessage

	// SaveCount tracks flushes, so tests can assert the write-through
	// behavior.
	SaveCount int
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{entries: map[string]json.RawMessage{}}
}

// Load returns a copy of the stored entries.
func (p *MemoryPersister) Load() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out, nil
}

// Save replaces the stored entries.
func (p *MemoryPersister) Save(entries map[string]json.RawMessage) error {
	p.SaveCount++
	out := make(map[string]json.RawMessage, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	p.entries = out
	return nil
}
