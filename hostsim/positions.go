package hostsim

import (
	"context"
	"database/sql"
	"sync"

	"ezi-bridge/ext/windowm"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// PositionStore remembers where windows opened with position "remembered"
// were last placed, keyed by window title.
type PositionStore interface {
	LoadPosition(ctx context.Context, key string) (windowm.Point, bool, error)
	SavePosition(ctx context.Context, key string, p windowm.Point) error
}

type MemoryPositions struct {
	mu sync.Mutex
	m  map[string]windowm.Point
}

func NewMemoryPositions() *MemoryPositions {
	return &MemoryPositions{m: make(map[string]windowm.Point)}
}

func (s *MemoryPositions) LoadPosition(ctx context.Context, key string) (windowm.Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[key]
	return p, ok, nil
}

func (s *MemoryPositions) SavePosition(ctx context.Context, key string, p windowm.Point) error {
	s.mu.Lock()
	s.m[key] = p
	s.mu.Unlock()
	return nil
}

// SQLitePositions keeps remembered positions across host restarts.
type SQLitePositions struct{ db *sql.DB }

func NewSQLitePositions(dsn string) (*SQLitePositions, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dsn)
	}
	s := &SQLitePositions{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLitePositions) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS window_positions (
  window_key TEXT PRIMARY KEY,
  x INTEGER NOT NULL,
  y INTEGER NOT NULL,
  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`)
	return errors.Wrap(err, "migrate window_positions")
}

func (s *SQLitePositions) LoadPosition(ctx context.Context, key string) (windowm.Point, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT x, y FROM window_positions WHERE window_key = ?`, key)
	var p windowm.Point
	switch err := row.Scan(&p.X, &p.Y); err {
	case nil:
		return p, true, nil
	case sql.ErrNoRows:
		return windowm.Point{}, false, nil
	default:
		return windowm.Point{}, false, err
	}
}

func (s *SQLitePositions) SavePosition(ctx context.Context, key string, p windowm.Point) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO window_positions (window_key, x, y, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(window_key) DO UPDATE SET x = excluded.x, y = excluded.y, updated_at = CURRENT_TIMESTAMP`,
		key, p.X, p.Y)
	return err
}

func (s *SQLitePositions) Close() error {
	return s.db.Close()
}
