package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	After   int64  // sequence > After
	Purpose string // LLM events only; empty matches all
}

// SnapshotData captures the full learner state at a point in time.
type SnapshotData struct {
	Version int                  `json:"version"`
	Session *SessionSnapshotData `json:"session,omitempty"`
}

// SessionSnapshotData is the persisted form of an assessment session.
type SessionSnapshotData struct {
	SessionID      string               `json:"session_id"`
	Phase          string               `json:"phase"`
	Tier           string               `json:"tier"`
	Role           string               `json:"role,omitempty"`
	TierStats      map[string]StatsData `json:"tier_stats,omitempty"`
	Totals         StatsData            `json:"totals"`
	Exclusion      []string             `json:"exclusion,omitempty"`
	Block          BlockData            `json:"block"`
	Pending        *BlockData           `json:"pending,omitempty"`
	Active         *QuestionData        `json:"active,omitempty"`
	LastTierChange *TierChangeData      `json:"last_tier_change,omitempty"`
	History        []HistoryEntryData   `json:"history,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// StatsData counts answers.
type StatsData struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

// BlockData is a reinforcement block in progress.
type BlockData struct {
	Count  int      `json:"count"`
	Failed []string `json:"failed,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// QuestionData is a persisted multiple-choice question.
type QuestionData struct {
	ID          string       `json:"id"`
	Tier        string       `json:"tier"`
	Topic       string       `json:"topic,omitempty"`
	Prompt      string       `json:"prompt"`
	Options     []OptionData `json:"options"`
	Correct     string       `json:"correct"`
	Explanation string       `json:"explanation,omitempty"`
}

// OptionData is one labelled answer choice.
type OptionData struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// TierChangeData records a promotion or demotion.
type TierChangeData struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction"`
}

// HistoryEntryData is one line of the conversation transcript.
type HistoryEntryData struct {
	Sender string    `json:"sender"`
	Kind   string    `json:"kind,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Snapshot represents a point-in-time capture of a user's session.
type Snapshot struct {
	ID        int
	UserID    string
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages per-user session snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot for snap.UserID.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot for userID, or nil if none exist.
	Latest(ctx context.Context, userID string) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots of userID.
	Prune(ctx context.Context, userID string, keep int) error

	// Delete removes every snapshot of userID.
	Delete(ctx context.Context, userID string) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates LLM calls by a grouping key.
type LLMUsage struct {
	Key          string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// AnswerEventData records one graded answer.
type AnswerEventData struct {
	UserID     string
	SessionID  string
	QuestionID string
	Tier       string
	Topic      string
	Label      string
	Correct    bool
}

// SessionEventData records a session lifecycle event.
type SessionEventData struct {
	UserID    string
	SessionID string
	Action    string // "start", "resume", "promote", "demote", "reinforce", "logout"
	Tier      string
	Answered  int
	Correct   int
	Detail    string
}

// SessionEvent is a stored session event.
type SessionEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	SessionEventData
}

// TierAccuracy summarises stored answers at one tier.
type TierAccuracy struct {
	Tier     string
	Answered int
	Correct  int
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// AppendAnswerEvent records a graded answer.
	AppendAnswerEvent(ctx context.Context, data AnswerEventData) error

	// AppendSessionEvent records a session lifecycle event.
	AppendSessionEvent(ctx context.Context, data SessionEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns a single LLM event, or nil if absent.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates LLM calls per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)

	// AnswerAccuracy aggregates a user's stored answers per tier.
	AnswerAccuracy(ctx context.Context, userID string) ([]TierAccuracy, error)

	// QuerySessionEvents returns a user's session events, newest first.
	QuerySessionEvents(ctx context.Context, userID string, opts QueryOpts) ([]SessionEvent, error)
}
