package db

import "sync/atomic"

// Provider returns the current database instance.
type Provider interface {
	Current() Database
}

// Manager holds the active database instance and supports swapping it
// atomically, so a reconnect does not require rebuilding the services
// that hold a reference to it.
type Manager struct {
	current atomic.Value
}

// NewManager creates a new Manager with the provided database instance.
func NewManager(database Database) *Manager {
	m := &Manager{}
	m.current.Store(database)
	return m
}

// Current returns the active database instance.
func (m *Manager) Current() Database {
	if m == nil {
		return nil
	}
	value := m.current.Load()
	if value == nil {
		return nil
	}
	return value.(Database)
}

// Swap replaces the current database instance and returns the previous one.
func (m *Manager) Swap(next Database) Database {
	prev := m.Current()
	m.current.Store(next)
	return prev
}
