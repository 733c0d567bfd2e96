// Package redisstore keeps session snapshots in Redis lists, one list per
// user, newest first.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/prltutor/internal/store"
)

const defaultPrefix = "prltutor"

// SnapshotRepo implements store.SnapshotRepo on Redis.
type SnapshotRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a SnapshotRepo.
type Option func(*SnapshotRepo)

// WithPrefix sets the key prefix. Default "prltutor".
func WithPrefix(prefix string) Option {
	return func(r *SnapshotRepo) { r.prefix = prefix }
}

// WithTTL expires a user's snapshots after ttl without writes. Zero keeps
// them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *SnapshotRepo) { r.ttl = ttl }
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *SnapshotRepo {
	r := &SnapshotRepo{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url string, opts ...Option) (*SnapshotRepo, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts...), nil
}

// Close closes the underlying client.
func (r *SnapshotRepo) Close() error {
	return r.client.Close()
}

func (r *SnapshotRepo) key(userID string) string {
	return r.prefix + ":snapshots:" + userID
}

func (r *SnapshotRepo) sequenceKey() string {
	return r.prefix + ":sequence"
}

// record is the stored JSON form of a snapshot.
type record struct {
	Sequence  int64              `json:"sequence"`
	Timestamp time.Time          `json:"timestamp"`
	Data      store.SnapshotData `json:"data"`
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *store.Snapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("save snapshot: empty user id")
	}

	seq := snap.Sequence
	if seq == 0 {
		n, err := r.client.Incr(ctx, r.sequenceKey()).Result()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		seq = n
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	val, err := json.Marshal(record{Sequence: seq, Timestamp: ts, Data: snap.Data})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := r.key(snap.UserID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, val)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, userID string) (*store.Snapshot, error) {
	raw, err := r.client.LIndex(ctx, r.key(userID), 0).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &store.Snapshot{
		UserID:    userID,
		Sequence:  rec.Sequence,
		Timestamp: rec.Timestamp,
		Data:      rec.Data,
	}, nil
}

func (r *SnapshotRepo) Prune(ctx context.Context, userID string, keep int) error {
	if keep < 1 {
		return r.Delete(ctx, userID)
	}
	if err := r.client.LTrim(ctx, r.key(userID), 0, int64(keep-1)).Err(); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

var _ store.SnapshotRepo = (*SnapshotRepo)(nil)
