package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	_ "modernc.org/sqlite"
)

// pragmas are attached to the DSN so the driver applies them to every
// pooled connection, not only the first.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// Store is the SQLite-backed home of snapshots and events.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
	seq *sequenceCounter
}

// Open connects to the SQLite database at dsn (a path or a file: URI) and
// migrates it to the current schema.
func Open(dsn string) (*Store, error) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	drv := entsql.OpenDB(dialect.SQLite, db)

	s, err := initStore(ctx, db, drv)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return s, nil
}

func initStore(ctx context.Context, db *sql.DB, drv *entsql.Driver) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	seq, err := newSequenceCounter(ctx, db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, drv: drv, seq: seq}, nil
}

func withPragmas(dsn string) string {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// DB exposes the connection for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) SnapshotRepo() SnapshotRepo {
	return &snapshotRepo{db: s.db, seq: s.seq}
}

func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db, seq: s.seq}
}

// DefaultDBPath returns $PRLTUTOR_DB when set, otherwise prltutor.db in
// DataDir. The parent directory is created either way.
func DefaultDBPath() (string, error) {
	p := os.Getenv("PRLTUTOR_DB")
	if p == "" {
		dir, err := DataDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(dir, "prltutor.db")
	}
	return p, EnsureDir(p)
}

// DataDir is $XDG_DATA_HOME/prltutor, falling back to
// ~/.local/share/prltutor.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "prltutor"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "prltutor"), nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
