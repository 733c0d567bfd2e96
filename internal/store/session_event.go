package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(sessionEventsTable.Name).
		Columns("sequence", "created_at", "user_id", "session_id", "action", "tier", "answered", "correct", "detail").
		Values(seqNum, time.Now().UnixMilli(), data.UserID, data.SessionID, data.Action, data.Tier, data.Answered, data.Correct, data.Detail).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendAnswerEvent(ctx context.Context, data AnswerEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(answerEventsTable.Name).
		Columns("sequence", "created_at", "user_id", "session_id", "question_id", "tier", "topic", "label", "correct").
		Values(seqNum, time.Now().UnixMilli(), data.UserID, data.SessionID, data.QuestionID, data.Tier, data.Topic, data.Label, data.Correct).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save answer event: %w", err)
	}
	return nil
}

func (r *eventRepo) AnswerAccuracy(ctx context.Context, userID string) ([]TierAccuracy, error) {
	b := builder()
	query, args := b.Select("tier", entsql.Count("*"), entsql.Sum("correct")).
		From(b.Table(answerEventsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		GroupBy("tier").
		OrderBy("tier").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answer accuracy: %w", err)
	}
	defer rows.Close()

	var out []TierAccuracy
	for rows.Next() {
		var a TierAccuracy
		if err := rows.Scan(&a.Tier, &a.Answered, &a.Correct); err != nil {
			return nil, fmt.Errorf("scan answer accuracy: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *eventRepo) QuerySessionEvents(ctx context.Context, userID string, opts QueryOpts) ([]SessionEvent, error) {
	b := builder()
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	sel := b.Select("id", "sequence", "created_at", "user_id", "session_id", "action", "tier", "answered", "correct", "detail").
		From(b.Table(sessionEventsTable.Name)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("id"))
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var (
			e  SessionEvent
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Sequence, &ms, &e.UserID, &e.SessionID, &e.Action, &e.Tier, &e.Answered, &e.Correct, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}
