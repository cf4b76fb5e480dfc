// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL document storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when a document is not found
	ErrConflict = errors.New("conflict")  // Returned when a document already exists
)

// Store interface defines the document-store operations the gateway proxies.
// One collection backs both the catalog and upload status reads: the
// ingestion pipeline creates a document per asset and fills it in as
// processing advances. The gateway is a read-mostly client; Upsert exists
// for pipeline writers sharing this module and for tests.
type Store interface {
	// ListMediaRecords returns every document in the catalog collection.
	ListMediaRecords(ctx context.Context) ([]model.MediaRecord, error)
	// GetMediaRecord returns one document by asset id, or ErrNotFound.
	GetMediaRecord(ctx context.Context, id string) (*model.MediaRecord, error)
	// UpsertMediaRecord creates or replaces a document.
	UpsertMediaRecord(ctx context.Context, rec model.MediaRecord) error
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu      sync.RWMutex                  // Protects concurrent access to the map
	records map[string]*model.MediaRecord // Map of asset id to document
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{
		records: make(map[string]*model.MediaRecord),
	}
}

func (m *memory) ListMediaRecords(ctx context.Context) ([]model.MediaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.MediaRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	// Stable catalog order for deterministic reads
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memory) GetMediaRecord(ctx context.Context, id string) (*model.MediaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (m *memory) UpsertMediaRecord(ctx context.Context, rec model.MediaRecord) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recCopy := rec
	m.records[rec.ID] = &recCopy
	return nil
}
