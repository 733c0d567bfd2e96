package session

import (
	"errors"
	"fmt"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/reinforcement"
	"github.com/abhisek/prltutor/internal/rotation"
	"github.com/abhisek/prltutor/internal/store"
)

// SnapshotVersion is the version written by ToSnapshot.
const SnapshotVersion = 1

// ToSnapshot converts a state into its persisted form.
func ToSnapshot(s State) store.SnapshotData {
	data := &store.SessionSnapshotData{
		SessionID: s.SessionID,
		Phase:     s.Phase.String(),
		Tier:      s.Tier.String(),
		Role:      s.Role,
		TierStats: make(map[string]store.StatsData, len(s.TierStats)),
		Totals:    statsData(s.Totals),
		Exclusion: []string(s.Exclusion.Clone()),
		Block:     blockData(s.Block),
		UpdatedAt: s.UpdatedAt,
	}
	for tier, st := range s.TierStats {
		data.TierStats[tier.String()] = statsData(st)
	}
	if s.Pending != nil {
		b := blockData(*s.Pending)
		data.Pending = &b
	}
	if s.Active != nil {
		data.Active = questionData(s.Active)
	}
	if ch := s.LastTierChange; ch != nil {
		data.LastTierChange = &store.TierChangeData{
			From:      ch.From.String(),
			To:        ch.To.String(),
			Direction: string(ch.Direction),
		}
	}
	for _, h := range s.History {
		data.History = append(data.History, store.HistoryEntryData{
			Sender: h.Sender,
			Kind:   string(h.Kind),
			Text:   h.Text,
			At:     h.At,
		})
	}
	return store.SnapshotData{Version: SnapshotVersion, Session: data}
}

// FromSnapshot restores a state. Unknown versions and unparseable fields are
// errors; invariants are checked separately by State.Validate.
func FromSnapshot(snap store.SnapshotData) (State, error) {
	if snap.Version != SnapshotVersion {
		return State{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	d := snap.Session
	if d == nil {
		return State{}, errors.New("snapshot has no session")
	}

	phase, err := ParsePhase(d.Phase)
	if err != nil {
		return State{}, err
	}
	tier, err := level.ParseTier(d.Tier)
	if err != nil {
		return State{}, err
	}

	s := State{
		SessionID: d.SessionID,
		Phase:     phase,
		Tier:      tier,
		Role:      d.Role,
		TierStats: make(map[level.Tier]level.Stats, len(d.TierStats)),
		Totals:    level.Stats{Answered: d.Totals.Answered, Correct: d.Totals.Correct},
		Exclusion: rotation.Set{},
		Block:     block(d.Block),
		UpdatedAt: d.UpdatedAt,
	}
	for name, st := range d.TierStats {
		t, err := level.ParseTier(name)
		if err != nil {
			return State{}, fmt.Errorf("tier stats: %w", err)
		}
		s.TierStats[t] = level.Stats{Answered: st.Answered, Correct: st.Correct}
	}
	if len(d.Exclusion) > 0 {
		s.Exclusion = append(s.Exclusion, d.Exclusion...)
	}
	if d.Pending != nil {
		b := block(*d.Pending)
		s.Pending = &b
	}
	if d.Active != nil {
		q, err := fromQuestionData(d.Active)
		if err != nil {
			return State{}, fmt.Errorf("active question: %w", err)
		}
		s.Active = q
	}
	if ch := d.LastTierChange; ch != nil {
		from, err := level.ParseTier(ch.From)
		if err != nil {
			return State{}, fmt.Errorf("tier change: %w", err)
		}
		to, err := level.ParseTier(ch.To)
		if err != nil {
			return State{}, fmt.Errorf("tier change: %w", err)
		}
		s.LastTierChange = &level.Change{From: from, To: to, Direction: level.Direction(ch.Direction)}
	}
	for _, h := range d.History {
		s.History = append(s.History, HistoryEntry{
			Sender: h.Sender,
			Kind:   MessageKind(h.Kind),
			Text:   h.Text,
			At:     h.At,
		})
	}
	return s, nil
}

func statsData(s level.Stats) store.StatsData {
	return store.StatsData{Answered: s.Answered, Correct: s.Correct}
}

func blockData(b reinforcement.Block) store.BlockData {
	c := b.Clone()
	return store.BlockData{Count: c.Count, Failed: c.Failed, Topics: c.Topics}
}

func block(b store.BlockData) reinforcement.Block {
	return reinforcement.Block{Count: b.Count, Failed: b.Failed, Topics: b.Topics}.Clone()
}

func questionData(q *question.Question) *store.QuestionData {
	d := &store.QuestionData{
		ID:          q.ID,
		Tier:        q.Tier.String(),
		Topic:       q.Topic,
		Prompt:      q.Prompt,
		Correct:     q.Correct,
		Explanation: q.Explanation,
	}
	for _, o := range q.Options {
		d.Options = append(d.Options, store.OptionData{Label: o.Label, Text: o.Text})
	}
	return d
}

func fromQuestionData(d *store.QuestionData) (*question.Question, error) {
	tier, err := level.ParseTier(d.Tier)
	if err != nil {
		return nil, err
	}
	q := &question.Question{
		ID:          d.ID,
		Tier:        tier,
		Topic:       d.Topic,
		Prompt:      d.Prompt,
		Correct:     d.Correct,
		Explanation: d.Explanation,
	}
	for _, o := range d.Options {
		q.Options = append(q.Options, question.Option{Label: o.Label, Text: o.Text})
	}
	return q, nil
}
