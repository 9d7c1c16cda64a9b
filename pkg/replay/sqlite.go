package replay

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteGuard is the durable replay guard: completed token keys survive
// application restarts. One database file per origin under test keeps
// guards isolated.
type SQLiteGuard struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (or creates) the guard database at the given path.
func OpenSQLite(path string) (*SQLiteGuard, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	g := &SQLiteGuard{db: db, dbPath: path}
	if err := g.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

func (g *SQLiteGuard) initialize() error {
	table := `
	CREATE TABLE IF NOT EXISTS replay_guard (
		key TEXT PRIMARY KEY,
		completed_at DATETIME NOT NULL
	);`
	if _, err := g.db.Exec(table); err != nil {
		return fmt.Errorf("failed to create replay_guard table: %w", err)
	}
	return nil
}

func (g *SQLiteGuard) Seen(ctx context.Context, key string) (bool, error) {
	var one int
	err := g.db.QueryRowContext(ctx, "SELECT 1 FROM replay_guard WHERE key = ?", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query replay guard: %w", err)
	}
	return true, nil
}

func (g *SQLiteGuard) Record(ctx context.Context, key string) error {
	_, err := g.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO replay_guard (key, completed_at) VALUES (?, ?)",
		key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record replay key: %w", err)
	}
	return nil
}

// Entry is one recorded completion, as listed by List.
type Entry struct {
	Key         string
	CompletedAt time.Time
}

// List returns all recorded completions, newest first.
func (g *SQLiteGuard) List(ctx context.Context) ([]Entry, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT key, completed_at FROM replay_guard ORDER BY completed_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list replay guard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan replay entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every recorded completion and reports how many were
// removed.
func (g *SQLiteGuard) Clear(ctx context.Context) (int64, error) {
	res, err := g.db.ExecContext(ctx, "DELETE FROM replay_guard")
	if err != nil {
		return 0, fmt.Errorf("failed to clear replay guard: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (g *SQLiteGuard) Close() error {
	return g.db.Close()
}
