package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"liturgyd/internal/model"
)

// Memory is an in-process Store used for development runs and tests. It
// mirrors the external store's semantics: an unordered bag of records with
// no per-slot uniqueness of its own.
type Memory struct {
	mu      sync.Mutex
	seq     int
	records map[string]model.Assignment
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.Assignment)}
}

func (m *Memory) List(_ context.Context) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Assignment, 0, len(m.records))
	for _, a := range m.records {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, a model.Assignment) (model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	a.RecordID = fmt.Sprintf("rec%06d", m.seq)
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	m.records[a.RecordID] = a
	return a, nil
}

func (m *Memory) Find(_ context.Context, recordID string) (model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.records[recordID]
	if !ok {
		return model.Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[recordID]; !ok {
		return ErrNotFound
	}
	delete(m.records, recordID)
	return nil
}
