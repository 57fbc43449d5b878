// Package postgres implements the persistence store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/cta/internal/persistence"
)

// Store persists strategy settings and variable snapshots in two tables
// keyed by strategy name, payloads stored as JSONB.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx pool against the DSN and returns a Store owning it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensurePool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("postgres store: nil pool")
	}
	return s.pool, nil
}

// LoadSettings retrieves all persisted strategy settings.
func (s *Store) LoadSettings(ctx context.Context) (map[string]persistence.StrategySetting, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT name, payload FROM strategy_settings`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: select settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]persistence.StrategySetting)
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("postgres store: scan setting: %w", err)
		}
		var setting persistence.StrategySetting
		if err := json.Unmarshal(payload, &setting); err != nil {
			return nil, fmt.Errorf("postgres store: decode setting %q: %w", name, err)
		}
		out[name] = setting
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate settings: %w", err)
	}
	return out, nil
}

// SaveSettings replaces the persisted settings snapshot in one transaction.
func (s *Store) SaveSettings(ctx context.Context, settings map[string]persistence.StrategySetting) error {
	return s.replaceSnapshot(ctx, "strategy_settings", len(settings), func(batch *pgx.Batch) error {
		for name, setting := range settings {
			payload, err := json.Marshal(setting)
			if err != nil {
				return fmt.Errorf("postgres store: encode setting %q: %w", name, err)
			}
			batch.Queue(
				`INSERT INTO strategy_settings (name, payload, updated_at)
				 VALUES ($1, $2, now())
				 ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
				name, payload,
			)
		}
		return nil
	})
}

// LoadData retrieves all persisted variable snapshots.
func (s *Store) LoadData(ctx context.Context) (map[string]map[string]any, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT name, payload FROM strategy_data`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: select data: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]any)
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("postgres store: scan data: %w", err)
		}
		values := make(map[string]any)
		if err := json.Unmarshal(payload, &values); err != nil {
			return nil, fmt.Errorf("postgres store: decode data %q: %w", name, err)
		}
		out[name] = values
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate data: %w", err)
	}
	return out, nil
}

// SaveData replaces the persisted variable snapshot in one transaction.
func (s *Store) SaveData(ctx context.Context, data map[string]map[string]any) error {
	return s.replaceSnapshot(ctx, "strategy_data", len(data), func(batch *pgx.Batch) error {
		for name, values := range data {
			payload, err := json.Marshal(values)
			if err != nil {
				return fmt.Errorf("postgres store: encode data %q: %w", name, err)
			}
			batch.Queue(
				`INSERT INTO strategy_data (name, payload, updated_at)
				 VALUES ($1, $2, now())
				 ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
				name, payload,
			)
		}
		return nil
	})
}

func (s *Store) replaceSnapshot(ctx context.Context, table string, size int, queue func(*pgx.Batch) error) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("postgres store: clear %s: %w", table, err)
	}
	if size > 0 {
		batch := &pgx.Batch{}
		if err := queue(batch); err != nil {
			return err
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres store: upsert %s: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit %s: %w", table, err)
	}
	return nil
}
