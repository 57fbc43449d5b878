// Package persistence defines the snapshot store contract for strategy
// configuration and runtime variables.
package persistence

import "context"

// StrategySetting is the persisted configuration of one strategy instance.
type StrategySetting struct {
	ClassName string         `json:"class_name"`
	Symbol    string         `json:"symbol"`
	Setting   map[string]any `json:"setting"`
}

// Store persists key-value snapshots keyed by strategy name. Save operations
// replace the full snapshot: entries absent from the map are removed.
type Store interface {
	LoadSettings(ctx context.Context) (map[string]StrategySetting, error)
	SaveSettings(ctx context.Context, settings map[string]StrategySetting) error
	LoadData(ctx context.Context) (map[string]map[string]any, error)
	SaveData(ctx context.Context, data map[string]map[string]any) error
}
