package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
	_ "modernc.org/sqlite"
)

const settingsKey = "settings"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value_json TEXT NOT NULL,
			updated_ns INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			page_url TEXT,
			started_ns INTEGER NOT NULL,
			updated_ns INTEGER NOT NULL,
			scanning INTEGER NOT NULL,
			found_count INTEGER NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_updated ON snapshots(updated_ns);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (types.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value_json FROM kv WHERE key = ?;`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DefaultSettings(), nil
	}
	if err != nil {
		return types.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	settings := types.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return types.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (s *Store) PutSettings(ctx context.Context, settings types.Settings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv(key, value_json, updated_ns) VALUES(?,?,?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_ns = excluded.updated_ns;`,
		settingsKey, string(b), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (s *Store) PutSnapshot(ctx context.Context, snap types.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot missing id")
	}
	if snap.StartedAt.IsZero() {
		snap.StartedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots(id, page_url, started_ns, updated_ns, scanning, found_count, payload_json)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			page_url = excluded.page_url,
			updated_ns = excluded.updated_ns,
			scanning = excluded.scanning,
			found_count = excluded.found_count,
			payload_json = excluded.payload_json;`,
		snap.ID,
		nullable(snap.PageURL),
		snap.StartedAt.UTC().UnixNano(),
		time.Now().UTC().UnixNano(),
		boolToInt(snap.Scanning),
		len(snap.Found),
		string(b),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context) (types.Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM snapshots ORDER BY updated_ns DESC, rowid DESC LIMIT 1;`))
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (types.Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM snapshots WHERE id = ?;`, id))
}

// PruneSnapshots deletes snapshots last updated before cutoff.
func (s *Store) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE updated_ns < ?;`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) scanSnapshot(row *sql.Row) (types.Snapshot, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Snapshot{}, store.ErrNotFound
		}
		return types.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
