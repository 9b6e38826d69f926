/*
Package sqlite provides a SQLite-backed lending.Gateway with history.

PURPOSE:
  Stores every saved library snapshot as a new row instead of overwriting
  the previous one. Load returns the newest row; older rows are kept as an
  audit trail until pruned.

APPEND-ONLY ENFORCEMENT:
  - Save only INSERTs
  - No UPDATE statements on snapshots
  - Rows are removed only by Prune (oldest first) and Reset

KEY TABLES:
  snapshots: one row per saved revision
    seq            monotonic insertion order
    revision       UUID naming the revision
    taken_at       Snapshot.SavedAt, RFC3339 UTC
    resources..    counts shown by History without decoding the document
    document       the JSON snapshot

WAL MODE:
  Opened with WAL so History readers do not block the writer.

USAGE:
  store, err := sqlite.New("./data/library.db")
  if err != nil {
      return err
  }
  defer store.Close()

  engine, err := lending.NewEngine(store)

SEE ALSO:
  - lending/gateway.go: the interface
  - janitor.go:         background pruning
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/lending-engine/lending"
)

// Store implements lending.Gateway using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		revision TEXT NOT NULL UNIQUE,
		taken_at TEXT NOT NULL,
		resources INTEGER NOT NULL,
		patrons INTEGER NOT NULL,
		loans INTEGER NOT NULL,
		consultations INTEGER NOT NULL,
		document TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at
		ON snapshots(taken_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GATEWAY
// =============================================================================

// Save appends snap as a new revision.
func (s *Store) Save(ctx context.Context, snap lending.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	takenAt := snap.SavedAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO snapshots
		(revision, taken_at, resources, patrons, loans, consultations, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(),
		takenAt.UTC().Format(time.RFC3339Nano),
		len(snap.Books)+len(snap.Magazines)+len(snap.Movies),
		len(snap.Members)+len(snap.CasualUsers),
		len(snap.Loans),
		len(snap.Consultations),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Load returns the newest revision.
func (s *Store) Load(ctx context.Context) (lending.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT revision, document FROM snapshots ORDER BY seq DESC LIMIT 1`)
	return scanDocument(row)
}

// LoadRevision returns one specific revision.
func (s *Store) LoadRevision(ctx context.Context, revision string) (lending.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT revision, document FROM snapshots WHERE revision = ?`, revision)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (lending.Snapshot, error) {
	var revision, doc string
	if err := row.Scan(&revision, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lending.Snapshot{}, lending.ErrSnapshotNotFound
		}
		return lending.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap lending.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return lending.Snapshot{}, fmt.Errorf("%w: revision %s: %w", lending.ErrCorruptSnapshot, revision, err)
	}
	return snap, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// Revision summarises one stored snapshot.
type Revision struct {
	Seq           int64     `json:"seq"`
	Revision      string    `json:"revision"`
	TakenAt       time.Time `json:"taken_at"`
	Resources     int       `json:"resources"`
	Patrons       int       `json:"patrons"`
	Loans         int       `json:"loans"`
	Consultations int       `json:"consultations"`
	Bytes         int       `json:"bytes"`
}

// History lists revisions, newest first. limit <= 0 means all.
func (s *Store) History(ctx context.Context, limit int) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seq, revision, taken_at, resources, patrons, loans, consultations, LENGTH(document)
		FROM snapshots
		ORDER BY seq DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			r       Revision
			takenAt string
		)
		if err := rows.Scan(&r.Seq, &r.Revision, &takenAt, &r.Resources, &r.Patrons, &r.Loans, &r.Consultations, &r.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		r.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: bad taken_at %q: %w", r.Revision, takenAt, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored revisions.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep revisions and returns how many
// rows were removed. keep < 1 is treated as 1: the latest revision is
// never pruned.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE seq NOT IN (SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM snapshots")
	return err
}

var _ lending.Gateway = (*Store)(nil)
