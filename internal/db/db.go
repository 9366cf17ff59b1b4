package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the journal database inside the base directory.
const FileName = "jot.db"

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order; append only.
var migrations = []migration{
	{
		version: 1,
		name:    "sessions and segments",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
			  id          TEXT PRIMARY KEY,
			  device      TEXT NOT NULL,
			  started_at  INTEGER NOT NULL,
			  ended_at    INTEGER,
			  notes       INTEGER NOT NULL DEFAULT 0,
			  filtered    INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS segments (
			  id          INTEGER PRIMARY KEY AUTOINCREMENT,
			  session_id  TEXT NOT NULL REFERENCES sessions(id),
			  text        TEXT NOT NULL,
			  words       INTEGER NOT NULL,
			  score       REAL NOT NULL,
			  reason      TEXT NOT NULL,
			  outcome     TEXT NOT NULL,
			  detail      TEXT,
			  note_id     TEXT,
			  created_at  INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_segments_session_created ON segments(session_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_segments_outcome ON segments(outcome, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC)`,
		},
	},
}

// CurrentSchemaVersion is the version after every migration has run.
var CurrentSchemaVersion = migrations[len(migrations)-1].version

// Init opens (creating if needed) the journal at baseDir/jot.db in WAL mode
// and brings its schema up to date. Tests pass t.TempDir() as baseDir.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// pragmas in the DSN apply to every pooled connection
	path := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(path, 0600)
	return db, nil
}

// migrate runs every migration newer than user_version, each in its own
// transaction together with the version bump.
func migrate(db *sql.DB) error {
	current, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// verifyWALMode fails unless the DSN pragma switched the journal to WAL.
func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in user_version.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion overwrites user_version.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
