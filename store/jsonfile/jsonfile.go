/*
Package jsonfile persists the library as a single JSON document.

PURPOSE:
  The whole library is loaded once at startup and rewritten after every
  mutation. The file is replaced atomically: the new document is written
  to a temporary file in the same directory, synced, then renamed over
  the old one, so a crash mid-write leaves the previous snapshot intact.

CORRUPTION:
  A file that does not decode is moved aside to <path>.corrupt-<unix> and
  reported as lending.ErrCorruptSnapshot. A file that decodes but fails
  the engine's consistency check is moved aside the same way through
  Quarantine. The engine then starts empty and the next save writes a
  fresh document without destroying the evidence.
*/
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/warp/lending-engine/lending"
)

// Store is a lending.Gateway backed by one file.
type Store struct {
	mu     sync.Mutex
	path   string
	indent bool
	now    func() time.Time
}

type Option func(s *Store)

// WithIndent pretty-prints the document.
func WithIndent() Option {
	return func(s *Store) { s.indent = true }
}

// WithNow overrides the clock used to name quarantined files.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Save writes snap to a temporary file and renames it over the document.
func (s *Store) Save(ctx context.Context, snap lending.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		doc []byte
		err error
	)
	if s.indent {
		doc, err = json.MarshalIndent(snap, "", "  ")
	} else {
		doc, err = json.Marshal(snap)
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Load reads the document. A missing file is lending.ErrSnapshotNotFound;
// an undecodable one is quarantined and reported as
// lending.ErrCorruptSnapshot.
func (s *Store) Load(ctx context.Context) (lending.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return lending.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return lending.Snapshot{}, lending.ErrSnapshotNotFound
	}
	if err != nil {
		return lending.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap lending.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		moved, qerr := s.quarantine()
		if qerr != nil {
			return lending.Snapshot{}, fmt.Errorf("%w: %w (quarantine failed: %v)", lending.ErrCorruptSnapshot, err, qerr)
		}
		return lending.Snapshot{}, fmt.Errorf("%w: %w (moved to %s)", lending.ErrCorruptSnapshot, err, moved)
	}
	return snap, nil
}

// Quarantine sets the document aside after the engine found it
// inconsistent. It implements lending.Quarantiner.
func (s *Store) Quarantine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	moved, err := s.quarantine()
	if err != nil {
		return "", fmt.Errorf("quarantine %s: %w", s.path, err)
	}
	return moved, nil
}

// quarantine renames the document out of the way. Caller holds mu.
func (s *Store) quarantine() (string, error) {
	moved := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, moved); err != nil {
		return "", err
	}
	return moved, nil
}

var (
	_ lending.Gateway     = (*Store)(nil)
	_ lending.Quarantiner = (*Store)(nil)
)
