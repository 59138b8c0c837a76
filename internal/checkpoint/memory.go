package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Progress does not survive a restart.
type MemoryStore struct {
	states map[string]State
	mu     sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(ctx context.Context, index string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[index]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) MarkCommitted(ctx context.Context, index string, batchSize, batch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.current(index)
	st.BatchSize = batchSize
	st.LastCommitted = batch
	if st.FailedBatch != NoBatch && st.FailedBatch <= batch {
		st.FailedBatch = NoBatch
		st.FailureReason = ""
	}
	st.UpdatedAt = time.Now()
	m.states[index] = st
	return nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, index string, batchSize, batch int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.current(index)
	st.BatchSize = batchSize
	st.FailedBatch = batch
	st.FailureReason = reason
	st.UpdatedAt = time.Now()
	m.states[index] = st
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, index)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) current(index string) State {
	if st, ok := m.states[index]; ok {
		return st
	}
	return State{Index: index, LastCommitted: NoBatch, FailedBatch: NoBatch}
}
