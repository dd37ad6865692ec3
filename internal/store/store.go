// Package store persists per-project local state under .garden/: completed
// build results keyed by work item key (the cross-run content-addressed
// cache consulted by providers) and small local settings such as the
// anonymous telemetry identifier.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"garden/pkg/logging"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DirName is the per-project state directory, relative to the project root.
const DirName = ".garden"

const dbFileName = "garden.db"

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS build_results (
	key        TEXT PRIMARY KEY,
	module     TEXT NOT NULL,
	version    TEXT NOT NULL,
	digest     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_build_results_module ON build_results(module);

CREATE TABLE IF NOT EXISTS local_config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// BuildResult records one completed build for reuse across runs.
type BuildResult struct {
	Key       string
	Module    string
	Version   string
	Digest    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the project-local database. A single writer per project is
// assumed; WAL mode keeps concurrent readers cheap.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store under root/.garden.
func Open(root string) (*Store, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Debug("Store", "Opened local store at %s", path)
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}

	current, ok, err := s.getConfig("schema_version")
	if err != nil {
		return err
	}
	if !ok {
		return s.setConfig("schema_version", fmt.Sprintf("%d", schemaVersion))
	}
	if current != fmt.Sprintf("%d", schemaVersion) {
		return fmt.Errorf("unsupported store schema version %s (expected %d); delete %s to reset", current, schemaVersion, DirName)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetBuildResult returns the recorded build for key, if any.
func (s *Store) GetBuildResult(key string) (*BuildResult, bool, error) {
	row := s.db.QueryRow(
		`SELECT key, module, version, digest, created_at, updated_at FROM build_results WHERE key = ?`, key)

	var r BuildResult
	err := row.Scan(&r.Key, &r.Module, &r.Version, &r.Digest, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read build result %s: %w", key, err)
	}
	return &r, true, nil
}

// PutBuildResult records a completed build, replacing any previous record
// for the same key.
func (s *Store) PutBuildResult(r *BuildResult) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO build_results (key, module, version, digest, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET module = excluded.module, version = excluded.version,
		   digest = excluded.digest, updated_at = excluded.updated_at`,
		r.Key, r.Module, r.Version, r.Digest, now, now)
	if err != nil {
		return fmt.Errorf("failed to record build result %s: %w", r.Key, err)
	}
	return nil
}

// PruneBuildResults deletes records for the given module other than the
// given version. Called after a successful build to keep the table from
// accumulating stale versions.
func (s *Store) PruneBuildResults(module, keepVersion string) error {
	_, err := s.db.Exec(`DELETE FROM build_results WHERE module = ? AND version != ?`, module, keepVersion)
	if err != nil {
		return fmt.Errorf("failed to prune build results for %s: %w", module, err)
	}
	return nil
}

// AnonymousID returns the stable anonymous identifier of this project
// checkout, creating one on first use.
func (s *Store) AnonymousID() (string, error) {
	id, ok, err := s.getConfig("anonymous_id")
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.setConfig("anonymous_id", id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) getConfig(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM local_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read local config %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setConfig(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO local_config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write local config %s: %w", key, err)
	}
	return nil
}
