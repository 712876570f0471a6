package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence. Each
// provider's usage state is one row, written with an upsert, so concurrent
// updates to different providers never clobber each other (unlike a
// whole-file read-modify-write).
//
// The database uses a write-ahead log for better concurrent performance.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt    *sql.Stmt
	loadStmt    *sql.Stmt
	loadAllStmt *sql.Stmt
	deleteStmt  *sql.Stmt
}

// NewSQLiteBackend opens (or creates) the usage database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:     db,
		dbPath: dbPath,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

// initSchema creates the usage table if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS provider_usage (
		provider TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		cooldown_until INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO provider_usage (provider, date, count, cooldown_until, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			date = excluded.date,
			count = excluded.count,
			cooldown_until = excluded.cooldown_until,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT provider, date, count, cooldown_until, updated_at
		FROM provider_usage
		WHERE provider = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	s.loadAllStmt, err = s.db.Prepare(`
		SELECT provider, date, count, cooldown_until, updated_at
		FROM provider_usage
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load-all statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM provider_usage WHERE provider = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// Save upserts the usage record for a provider.
func (s *SQLiteBackend) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.saveStmt.ExecContext(ctx,
		record.Provider,
		record.Date,
		record.Count,
		record.CooldownUntil,
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}

	return nil
}

// Load retrieves the usage record for a provider, or nil if absent.
func (s *SQLiteBackend) Load(ctx context.Context, provider string) (*Record, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := scanRecord(s.loadStmt.QueryRowContext(ctx, provider))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load usage record: %w", err)
	}

	return record, nil
}

// LoadAll returns all persisted usage records keyed by provider name.
func (s *SQLiteBackend) LoadAll(ctx context.Context) (map[string]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadAllStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*Record)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records[record.Provider] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}

// Delete removes the usage record for a provider.
func (s *SQLiteBackend) Delete(ctx context.Context, provider string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, provider); err != nil {
		return fmt.Errorf("failed to delete usage record: %w", err)
	}
	return nil
}

// Close releases database resources. Close is idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.loadStmt, s.loadAllStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one usage row.
func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		updatedAt int64
	)

	if err := row.Scan(&record.Provider, &record.Date, &record.Count, &record.CooldownUntil, &updatedAt); err != nil {
		return nil, err
	}

	record.UpdatedAt = time.Unix(updatedAt, 0)
	return &record, nil
}
