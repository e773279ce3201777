package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// memDoc keeps its version across deletion (deleted entries become
// tombstones) so a recreated path can never echo an old version and slip
// past a transaction's read validation.
type memDoc struct {
	data    json.RawMessage
	version int64
	deleted bool
}

// Memory is the in-process backend: a versioned path → document map with
// optimistic transactions. Suitable for tests and single-node deployments.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]memDoc
	hub  *hub
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memDoc), hub: newHub()}
}

func (m *Memory) Get(ctx context.Context, path string, out any) (bool, error) {
	m.mu.RLock()
	doc, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok || doc.deleted {
		return false, nil
	}
	if err := json.Unmarshal(doc.data, out); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, path string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	snap := m.applyLocked(path, data, false)
	m.mu.Unlock()
	m.hub.publish(snap)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	snap := m.applyLocked(path, nil, true)
	m.mu.Unlock()
	m.hub.publish(snap)
	return nil
}

func (m *Memory) ArrayUnion(ctx context.Context, path, field string, elems ...string) error {
	return arrayUnion(ctx, m, path, field, elems...)
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < txAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: m, reads: make(map[string]int64), writes: make(map[string]memWrite)}
		if err := fn(tx); err != nil {
			return err
		}
		if snaps, ok := m.commit(tx); ok {
			for _, snap := range snaps {
				m.hub.publish(snap)
			}
			return nil
		}
	}
	return ErrTxContention
}

// commit validates the transaction's read versions and applies its buffered
// writes under one lock acquisition, reporting false on conflict.
func (m *Memory) commit(tx *memTx) ([]Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, version := range tx.reads {
		if m.docs[path].version != version {
			return nil, false
		}
	}
	snaps := make([]Snapshot, 0, len(tx.writes))
	for path, w := range tx.writes {
		snaps = append(snaps, m.applyLocked(path, w.data, w.delete))
	}
	return snaps, true
}

func (m *Memory) applyLocked(path string, data json.RawMessage, del bool) Snapshot {
	version := m.docs[path].version + 1
	if del {
		m.docs[path] = memDoc{version: version, deleted: true}
		return Snapshot{Path: path, Version: version, Exists: false}
	}
	m.docs[path] = memDoc{data: data, version: version}
	return Snapshot{Path: path, Data: data, Version: version, Exists: true}
}

func (m *Memory) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	// The initial read and the hub registration happen under the store
	// lock: a commit either applies before (and lands in the initial
	// snapshot) or applies after, in which case its publish runs once the
	// lock is released and reaches the registered subscriber.
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	exists := ok && !doc.deleted
	initial := Snapshot{Path: path, Version: doc.version, Exists: exists}
	if exists {
		initial.Data = doc.data
	}
	return m.hub.subscribe(ctx, path, initial), nil
}

type memWrite struct {
	data   json.RawMessage
	delete bool
}

type memTx struct {
	store  *Memory
	reads  map[string]int64
	writes map[string]memWrite
}

func (tx *memTx) Get(path string, out any) (bool, error) {
	// Reads observe the transaction's own writes first.
	if w, ok := tx.writes[path]; ok {
		if w.delete {
			return false, nil
		}
		if err := json.Unmarshal(w.data, out); err != nil {
			return true, fmt.Errorf("store: decode %s: %w", path, err)
		}
		return true, nil
	}
	tx.store.mu.RLock()
	doc, ok := tx.store.docs[path]
	tx.store.mu.RUnlock()
	tx.reads[path] = doc.version // zero for never-written paths
	if !ok || doc.deleted {
		return false, nil
	}
	if err := json.Unmarshal(doc.data, out); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (tx *memTx) Set(path string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	tx.writes[path] = memWrite{data: data}
	return nil
}

func (tx *memTx) Delete(path string) error {
	tx.writes[path] = memWrite{delete: true}
	return nil
}
