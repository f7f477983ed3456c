package rt

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ---------------------------------------------------------------------------
// SQLite byte source
// ---------------------------------------------------------------------------

// SQLiteSource serves descriptor bytes from a sqlite database, letting a
// whole class library ship as a single store file.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLiteSource opens (creating if necessary) a descriptor store at path.
func OpenSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rt: opening descriptor store %s: %w", path, err)
	}

	// Allow concurrent loaders to share the store.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("rt: setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS descriptors (
		name  TEXT PRIMARY KEY,
		bytes BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("rt: creating descriptors table: %w", err)
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Put stores descriptor bytes under a type name, replacing any previous
// entry.
func (s *SQLiteSource) Put(name string, raw []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO descriptors (name, bytes) VALUES (?, ?)",
		name, raw,
	)
	if err != nil {
		return fmt.Errorf("rt: storing descriptor %s: %w", name, err)
	}
	return nil
}

// Bytes implements ByteSource.
func (s *SQLiteSource) Bytes(name string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT bytes FROM descriptors WHERE name = ?", name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoBytes
		}
		return nil, fmt.Errorf("rt: querying descriptor %s: %w", name, err)
	}
	return raw, nil
}
