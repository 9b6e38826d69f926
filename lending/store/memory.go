// Package store provides in-process Gateway implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/warp/lending-engine/lending"
)

// =============================================================================
// MEMORY GATEWAY - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the last snapshot as encoded JSON, so a Load never shares
// memory with the state that was saved and every save exercises the same
// codec as the file-backed gateways.
type Memory struct {
	mu      sync.RWMutex
	doc     []byte
	saves   int
	failErr error
}

func NewMemory() *Memory {
	return &Memory{}
}

// Save encodes snap and replaces the stored document.
func (m *Memory) Save(_ context.Context, snap lending.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	m.doc = doc
	m.saves++
	return nil
}

// Load decodes the stored document.
func (m *Memory) Load(_ context.Context) (lending.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.doc == nil {
		return lending.Snapshot{}, lending.ErrSnapshotNotFound
	}
	var snap lending.Snapshot
	if err := json.Unmarshal(m.doc, &snap); err != nil {
		return lending.Snapshot{}, fmt.Errorf("%w: %w", lending.ErrCorruptSnapshot, err)
	}
	return snap, nil
}

// Document returns a copy of the stored JSON, nil before the first save.
func (m *Memory) Document() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.doc...)
}

// Saves counts successful saves.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// FailSaves makes every following Save return err until called with nil.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

var _ lending.Gateway = (*Memory)(nil)
