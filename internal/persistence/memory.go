package persistence

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and DSN-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]StrategySetting
	data     map[string]map[string]any
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:       sync.RWMutex{},
		settings: make(map[string]StrategySetting),
		data:     make(map[string]map[string]any),
	}
}

// LoadSettings returns a copy of the persisted settings snapshot.
func (m *MemoryStore) LoadSettings(context.Context) (map[string]StrategySetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]StrategySetting, len(m.settings))
	for name, setting := range m.settings {
		out[name] = cloneSetting(setting)
	}
	return out, nil
}

// SaveSettings replaces the persisted settings snapshot.
func (m *MemoryStore) SaveSettings(_ context.Context, settings map[string]StrategySetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = make(map[string]StrategySetting, len(settings))
	for name, setting := range settings {
		m.settings[name] = cloneSetting(setting)
	}
	return nil
}

// LoadData returns a copy of the persisted variable snapshot.
func (m *MemoryStore) LoadData(context.Context) (map[string]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]any, len(m.data))
	for name, values := range m.data {
		out[name] = cloneValues(values)
	}
	return out, nil
}

// SaveData replaces the persisted variable snapshot.
func (m *MemoryStore) SaveData(_ context.Context, data map[string]map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]map[string]any, len(data))
	for name, values := range data {
		m.data[name] = cloneValues(values)
	}
	return nil
}

func cloneSetting(setting StrategySetting) StrategySetting {
	out := setting
	out.Setting = cloneValues(setting.Setting)
	return out
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
