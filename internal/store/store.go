package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Collection persists one entity type as a JSON array in a single file.
//
// Persistence contract:
// - The whole array is loaded into memory at Open and rewritten on every
//   mutation (temp file + rename, so a crash never leaves a partial file).
// - A per-collection mutex serializes writers within this process. Concurrent
//   processes writing the same file race (last write wins); callers that need
//   multi-writer access must serialize externally.
// - Timestamps round-trip as RFC 3339 strings. A record that fails to decode
//   (malformed JSON, malformed timestamp) fails the whole load rather than
//   being silently dropped.

var (
	ErrNotFound   = errors.New("store: not found")
	ErrValidation = errors.New("store: validation failed")
)

// Meta carries the server-assigned identity and timestamps shared by every
// stored record. Entity structs embed it.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Meta) meta() *Meta { return m }

// Record is satisfied by any struct that embeds Meta.
type Record interface{ meta() *Meta }

type Collection[T any, PT interface {
	Record
	*T
}] struct {
	path  string
	clock func() time.Time

	mu      sync.Mutex
	records []T
}

// Open loads the collection file, creating it (and its directory) when absent.
func Open[T any, PT interface {
	Record
	*T
}](path string) (*Collection[T, PT], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		raw = []byte("[]")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return nil, fmt.Errorf("store: init %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}

	return &Collection[T, PT]{
		path:    path,
		clock:   time.Now,
		records: records,
	}, nil
}

// Create assigns an ID and timestamps when absent, appends the record and
// persists the collection. The stored record is returned.
func (c *Collection[T, PT]) Create(rec T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock().UTC()
	m := PT(&rec).meta()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	c.records = append(c.records, rec)
	if err := c.persist(); err != nil {
		c.records = c.records[:len(c.records)-1]
		return rec, err
	}
	return rec, nil
}

// Get returns the record with the given ID or ErrNotFound.
func (c *Collection[T, PT]) Get(id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.records {
		if PT(&c.records[i]).meta().ID == id {
			return c.records[i], nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

// Update applies mutate to the stored record, refreshes the updated-at
// timestamp and persists. Returns ErrNotFound when the ID does not exist.
func (c *Collection[T, PT]) Update(id string, mutate func(*T)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.records {
		if PT(&c.records[i]).meta().ID != id {
			continue
		}
		prev := c.records[i]
		rec := prev
		mutate(&rec)
		m := PT(&rec).meta()
		m.ID = id // the identity is not mutable
		m.UpdatedAt = c.clock().UTC()

		c.records[i] = rec
		if err := c.persist(); err != nil {
			c.records[i] = prev
			return rec, err
		}
		return rec, nil
	}
	var zero T
	return zero, ErrNotFound
}

// Delete removes the record with the given ID or returns ErrNotFound.
func (c *Collection[T, PT]) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.records {
		if PT(&c.records[i]).meta().ID != id {
			continue
		}
		prev := c.records
		c.records = append(c.records[:i:i], c.records[i+1:]...)
		if err := c.persist(); err != nil {
			c.records = prev
			return err
		}
		return nil
	}
	return ErrNotFound
}

// Find returns the records matching pred in insertion order.
func (c *Collection[T, PT]) Find(pred func(T) bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []T
	for _, rec := range c.records {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// FindOne returns the first record matching pred.
func (c *Collection[T, PT]) FindOne(pred func(T) bool) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.records {
		if pred(rec) {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// All returns a copy of every record in insertion order. Entity repositories
// must not expose this unscoped; it exists for tenant-filtered composition.
func (c *Collection[T, PT]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, len(c.records))
	copy(out, c.records)
	return out
}

// persist rewrites the backing file atomically. Callers hold c.mu.
func (c *Collection[T, PT]) persist() error {
	data, err := json.MarshalIndent(c.records, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.path, err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", c.path, err)
	}
	return nil
}
