package docstore

import (
	"fmt"
	"sync"
)

// Memory keeps the document in memory. It is used by tests and by callers
// that want a throwaway store; SaveErr and LoadErr inject failures.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemory returns a memory backend, optionally seeded with data.
func NewMemory(data []byte) *Memory {
	m := &Memory{}
	if data != nil {
		m.data = append([]byte(nil), data...)
	}
	return m
}

// Name implements Backend.
func (m *Memory) Name() string { return "memory" }

// Load implements Backend.
func (m *Memory) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.data == nil {
		return nil, fmt.Errorf("%w: memory", ErrNotExist)
	}
	return append([]byte(nil), m.data...), nil
}

// Save implements Backend.
func (m *Memory) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Saves returns how many successful writes the backend received.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Bytes returns a copy of the last saved document.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// SetSaveErr changes the injected save failure.
func (m *Memory) SetSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveErr = err
}
