package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo on the snapshots table.
type snapshotRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("save snapshot: empty user id")
	}
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}

	seqNum := snap.Sequence
	if seqNum == 0 {
		if seqNum, err = r.seq.Next(ctx); err != nil {
			return err
		}
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query, args := builder().Insert(snapshotsTable.Name).
		Columns("user_id", "sequence", "created_at", "data").
		Values(snap.UserID, seqNum, ts.UnixMilli(), string(data)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, userID string) (*Snapshot, error) {
	b := builder()
	query, args := b.Select("id", "user_id", "sequence", "created_at", "data").
		From(b.Table(snapshotsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()

	var (
		snap Snapshot
		ms   int64
		raw  string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.UserID, &snap.Sequence, &ms, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &snap.Data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	snap.Timestamp = time.UnixMilli(ms)
	return &snap, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, userID string, keep int) error {
	if keep < 1 {
		return r.Delete(ctx, userID)
	}

	// Find the ID threshold: the first snapshot beyond the kept window.
	b := builder()
	query, args := b.Select("id").
		From(b.Table(snapshotsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Offset(keep).
		Query()

	var threshold int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // fewer than keep snapshots exist
		}
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = builder().Delete(snapshotsTable.Name).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.LTE("id", threshold))).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Delete(ctx context.Context, userID string) error {
	query, args := builder().Delete(snapshotsTable.Name).
		Where(entsql.EQ("user_id", userID)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}
