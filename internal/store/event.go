package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// eventRepo implements EventRepo on the event tables.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// sequenceCounter hands out the store-wide sequence shared by events and
// snapshots, so either can be ordered against the other.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

func newSequenceCounter(ctx context.Context, db *sql.DB) (*sequenceCounter, error) {
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`); err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{db: db}, nil
}

// Next returns the current value and advances the counter. The mutex
// orders callers in this process; RETURNING keeps the increment atomic
// for other processes sharing the file.
func (c *sequenceCounter) Next(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	row := c.db.QueryRowContext(ctx, `UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return n, nil
}
