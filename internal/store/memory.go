package store

import (
	"context"
	"sync"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// Memory is a Store that keeps everything in process memory. Snapshots beyond
// the most recent maxSnapshots are dropped.
type Memory struct {
	mu           sync.RWMutex
	settings     *types.Settings
	snapshots    map[string]types.Snapshot
	order        []string
	maxSnapshots int
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string]types.Snapshot), maxSnapshots: 100}
}

func (m *Memory) GetSettings(ctx context.Context) (types.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return types.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *Memory) PutSettings(ctx context.Context, s types.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Memory) PutSnapshot(ctx context.Context, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.snapshots[snap.ID]; !exists {
		m.order = append(m.order, snap.ID)
	} else {
		m.moveToBack(snap.ID)
	}
	m.snapshots[snap.ID] = snap
	for len(m.order) > m.maxSnapshots {
		delete(m.snapshots, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) moveToBack(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.order = append(m.order, id)
}

func (m *Memory) LatestSnapshot(ctx context.Context) (types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return types.Snapshot{}, ErrNotFound
	}
	return m.snapshots[m.order[len(m.order)-1]], nil
}

func (m *Memory) GetSnapshot(ctx context.Context, id string) (types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[id]
	if !ok {
		return types.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) Close() error { return nil }
