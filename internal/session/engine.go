// Package session runs an adaptive assessment for one learner: it collects
// the learner's role, serves questions, grades answers, moves the learner
// between tiers and schedules reinforcement after every block.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/evaluation"
	"github.com/abhisek/prltutor/internal/explain"
	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/reinforcement"
	"github.com/abhisek/prltutor/internal/rotation"
	"github.com/abhisek/prltutor/internal/store"
)

// MaxRoleLength bounds the stored role, in runes.
const MaxRoleLength = 120

// Deps are the collaborators of an engine.
type Deps struct {
	Questions question.Provider
	Evaluator evaluation.Evaluator
	Explainer explain.Explainer

	// Snapshots persists state between runs. Optional.
	Snapshots store.SnapshotRepo

	// Events records answers and lifecycle events. Optional.
	Events store.EventRepo

	Logger *zap.Logger

	// Clock and NewID default to time.Now and uuid.NewString.
	Clock func() time.Time
	NewID func() string
}

// Config holds the engine tunables.
type Config struct {
	Policy        level.Policy
	Scheduler     reinforcement.Scheduler
	Rotation      rotation.Policy
	Alphabet      question.Alphabet
	HistoryWindow int
	SnapshotKeep  int
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		Policy:        level.DefaultPolicy(),
		Scheduler:     reinforcement.NewScheduler(reinforcement.DefaultThreshold),
		Rotation:      rotation.DefaultPolicy(),
		Alphabet:      question.DefaultAlphabet,
		HistoryWindow: 50,
		SnapshotKeep:  5,
	}
}

// Engine is the state machine of one learner's session. Calls are
// sequential: a call made while another is running fails with ErrBusy.
type Engine struct {
	userID string
	deps   Deps
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	busy  bool
	state State
}

// Open creates the engine for userID, restoring the latest snapshot when one
// exists and is valid. A failed or invalid restore starts a fresh session.
func Open(ctx context.Context, userID string, deps Deps, cfg Config) (*Engine, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("session: empty user id")
	}
	if deps.Questions == nil || deps.Evaluator == nil || deps.Explainer == nil {
		return nil, errors.New("session: question provider, evaluator and explainer are required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.Scheduler.Threshold <= 0 {
		cfg.Scheduler = reinforcement.NewScheduler(cfg.Scheduler.Threshold)
	}
	if len(cfg.Alphabet) == 0 {
		cfg.Alphabet = question.DefaultAlphabet
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	e := &Engine{
		userID: userID,
		deps:   deps,
		cfg:    cfg,
	}
	e.state = e.restore(ctx)
	e.logger = deps.Logger.With(
		zap.String("user_id", userID),
		zap.String("session_id", e.state.SessionID),
	)
	e.logger.Info("session opened",
		zap.Stringer("phase", e.state.Phase),
		zap.Stringer("tier", e.state.Tier),
	)
	return e, nil
}

func (e *Engine) restore(ctx context.Context) State {
	fresh := NewState(e.deps.NewID(), e.deps.Clock())
	if e.deps.Snapshots == nil {
		return fresh
	}
	log := e.deps.Logger.With(zap.String("user_id", e.userID))

	snap, err := e.deps.Snapshots.Latest(ctx, e.userID)
	if err != nil {
		log.Warn("snapshot load failed, starting fresh", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
		return fresh
	}
	if snap == nil {
		return fresh
	}
	s, err := FromSnapshot(snap.Data)
	if err == nil {
		err = s.Validate(e.cfg.Scheduler, e.cfg.Alphabet)
	}
	if err != nil {
		log.Warn("invalid snapshot, starting fresh", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
		return fresh
	}
	if s.Phase == PhaseTerminated {
		return fresh
	}
	if s.SessionID == "" {
		s.SessionID = fresh.SessionID
	}
	return s
}

// UserID returns the learner the engine belongs to.
func (e *Engine) UserID() string { return e.userID }

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Progress returns the current progress indicator.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return progressOf(e.state)
}

func progressOf(s State) Progress {
	return Progress{
		Answered:  s.Totals.Answered,
		Correct:   s.Totals.Correct,
		Tier:      s.Tier,
		TierStats: s.Stats(),
	}
}

// Start opens the conversation: a greeting for a new learner, the active
// question after a restore, or the interrupted step when one is pending.
func (e *Engine) Start(ctx context.Context) (*Reply, error) {
	cur, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()

	r := &Reply{}
	switch cur.Phase {
	case PhaseCollectingRole:
		next := cur.Clone()
		r.add(KindGreeting, greetingText())
		e.record(&next, r.Messages...)
		e.commit(ctx, next)
		e.sessionEvent(ctx, next, "start", "")
	default:
		r.add(KindInfo, welcomeBackText(cur))
		e.sessionEvent(ctx, cur, "resume", cur.Phase.String())
		err = e.present(ctx, cur, r)
	}
	return e.finish(r, err)
}

// Submit feeds learner input to the current phase. In EVALUATING and
// REINFORCING the input is ignored and the pending step is retried.
//
// When a later step fails after the answer was committed, the returned
// Reply carries the messages produced so far alongside the error.
func (e *Engine) Submit(ctx context.Context, input string) (*Reply, error) {
	cur, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()

	r := &Reply{}
	switch cur.Phase {
	case PhaseCollectingRole:
		err = e.collectRole(ctx, cur, input, r)
	case PhaseAwaitingAnswer:
		err = e.answer(ctx, cur, input, r)
	default:
		err = e.advance(ctx, r)
	}
	return e.finish(r, err)
}

// Resume retries the step that failed after an answer was committed. In any
// other phase it re-presents what the learner should respond to.
func (e *Engine) Resume(ctx context.Context) (*Reply, error) {
	cur, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()

	r := &Reply{}
	err = e.present(ctx, cur, r)
	return e.finish(r, err)
}

// Logout ends the session and deletes its snapshots. Logging out twice is
// not an error.
func (e *Engine) Logout(ctx context.Context) error {
	cur, err := e.begin()
	if errors.Is(err, ErrTerminated) {
		return nil
	}
	if err != nil {
		return err
	}
	defer e.end()

	e.mu.Lock()
	e.state = State{
		SessionID: cur.SessionID,
		Phase:     PhaseTerminated,
		Tier:      level.Lowest,
		UpdatedAt: e.deps.Clock(),
	}
	e.mu.Unlock()

	if e.deps.Snapshots != nil {
		if err := e.deps.Snapshots.Delete(context.WithoutCancel(ctx), e.userID); err != nil {
			e.logger.Warn("snapshot delete failed", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
		}
	}
	e.sessionEvent(ctx, cur, "logout", "")
	e.logger.Info("session terminated",
		zap.Int("answered", cur.Totals.Answered),
		zap.Int("correct", cur.Totals.Correct),
	)
	return nil
}

func (e *Engine) begin() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return State{}, ErrBusy
	}
	if e.state.Phase == PhaseTerminated {
		return State{}, ErrTerminated
	}
	e.busy = true
	return e.state.Clone(), nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) current() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// commit swaps in next as one step and persists it.
func (e *Engine) commit(ctx context.Context, next State) {
	next.UpdatedAt = e.deps.Clock()

	e.mu.Lock()
	prev := e.state.Phase
	e.state = next
	e.mu.Unlock()

	if prev != next.Phase {
		e.logger.Debug("phase transition",
			zap.Stringer("from", prev),
			zap.Stringer("to", next.Phase),
			zap.Stringer("tier", next.Tier),
		)
	}
	e.persist(ctx, next)
}

func (e *Engine) persist(ctx context.Context, s State) {
	if e.deps.Snapshots == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	snap := &store.Snapshot{
		UserID:    e.userID,
		Timestamp: s.UpdatedAt,
		Data:      ToSnapshot(s),
	}
	if err := e.deps.Snapshots.Save(ctx, snap); err != nil {
		e.logger.Warn("snapshot save failed", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
		return
	}
	if e.cfg.SnapshotKeep > 0 {
		if err := e.deps.Snapshots.Prune(ctx, e.userID, e.cfg.SnapshotKeep); err != nil {
			e.logger.Warn("snapshot prune failed", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
		}
	}
}

// finish fills the reply from the committed state.
func (e *Engine) finish(r *Reply, err error) (*Reply, error) {
	s := e.current()
	r.Phase = s.Phase
	r.Progress = progressOf(s)
	if s.Phase == PhaseAwaitingAnswer {
		r.Question = viewOf(s.Active)
	}
	if err != nil {
		e.logFailure(err)
		if len(r.Messages) == 0 {
			return nil, err
		}
	}
	return r, err
}

func (e *Engine) logFailure(err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		e.logger.Debug("invalid input", zap.Error(err))
	case errors.Is(err, ErrMalformedResponse):
		e.logger.Warn("malformed collaborator response", zap.Error(err))
	case errors.Is(err, ErrCollaboratorUnavailable):
		e.logger.Warn("collaborator unavailable", zap.Error(err))
	default:
		e.logger.Error("transition failed", zap.Error(err))
	}
}

// present re-shows what the learner should respond to, running the pending
// step first when the last call was interrupted.
func (e *Engine) present(ctx context.Context, s State, r *Reply) error {
	switch s.Phase {
	case PhaseCollectingRole:
		r.add(KindGreeting, greetingText())
		return nil
	case PhaseAwaitingAnswer:
		r.add(KindQuestion, questionText(s.Active, e.cfg.Alphabet))
		return nil
	default:
		return e.advance(ctx, r)
	}
}

func (e *Engine) collectRole(ctx context.Context, cur State, input string, r *Reply) error {
	role := strings.Join(strings.Fields(input), " ")
	if role == "" {
		return fmt.Errorf("%w: role must not be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(role) > MaxRoleLength {
		role = string([]rune(role)[:MaxRoleLength])
	}

	q, excl, err := e.fetch(ctx, cur.Tier, cur.Exclusion, role)
	if err != nil {
		return err
	}

	next := cur.Clone()
	next.Role = role
	next.Phase = PhaseAwaitingAnswer
	next.Active = q
	next.Exclusion = excl

	r.add(KindRoleAck, roleAckText(role, next.Tier))
	r.add(KindQuestion, questionText(q, e.cfg.Alphabet))
	e.record(&next, Message{Kind: KindInput, Text: input})
	e.record(&next, r.Messages...)
	e.commit(ctx, next)

	e.sessionEvent(ctx, next, "role", role)
	e.logger.Info("role collected", zap.String("role", role), zap.String("question_id", q.ID))
	return nil
}

func (e *Engine) answer(ctx context.Context, cur State, input string, r *Reply) error {
	label, ok := e.cfg.Alphabet.Normalize(input)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidInput, invalidAnswerText(e.cfg.Alphabet))
	}
	q := cur.Active

	res, err := e.deps.Evaluator.Evaluate(ctx, evaluation.Request{
		QuestionID: q.ID,
		Label:      label,
		Question:   q.Clone(),
		Role:       cur.Role,
	})
	if err != nil {
		return collaboratorError("evaluate answer", err)
	}

	next := cur.Clone()
	stats := next.Stats().Record(res.IsCorrect)
	next.Totals = next.Totals.Record(res.IsCorrect)
	next.TierStats[next.Tier] = stats

	outcome := e.cfg.Scheduler.Record(next.Block, res.IsCorrect, q.ID, q.Topic)

	decision := e.cfg.Policy.Evaluate(next.Tier, stats)
	var change *level.Change
	if decision.Changed {
		change = decision.Change(next.Tier)
		next.Tier = decision.Tier
		if decision.StatsResetNeeded {
			next.TierStats[next.Tier] = level.Stats{}
		}
		next.LastTierChange = change
	}
	next.Exclusion = e.cfg.Rotation.Next(next.Exclusion, q.ID, decision.Changed)

	next.Active = nil
	if outcome.BlockComplete {
		pending := outcome.Block.Clone()
		next.Pending = &pending
		next.Block = e.cfg.Scheduler.Reset(outcome.Block)
		next.Phase = PhaseReinforcing
	} else {
		next.Block = outcome.Block
		next.Phase = PhaseEvaluating
	}

	r.add(KindFeedback, res.Feedback)
	if change != nil {
		r.TierChange = change
		r.add(KindTierChange, tierChangeText(change))
	}
	e.record(&next, Message{Kind: KindInput, Text: label})
	e.record(&next, r.Messages...)
	e.commit(ctx, next)

	e.answerEvent(ctx, next, q, label, res.IsCorrect)
	if change != nil {
		e.sessionEvent(ctx, next, string(change.Direction), fmt.Sprintf("%s->%s", change.From, change.To))
		e.logger.Info("tier changed",
			zap.Stringer("from", change.From),
			zap.Stringer("to", change.To),
			zap.String("direction", string(change.Direction)),
			zap.Float64("rate", stats.Rate()),
		)
	}

	return e.advance(ctx, r)
}

// advance runs the pending steps until a question is on screen.
func (e *Engine) advance(ctx context.Context, r *Reply) error {
	for {
		cur := e.current()
		var err error
		switch cur.Phase {
		case PhaseReinforcing:
			err = e.reinforce(ctx, cur, r)
		case PhaseEvaluating:
			err = e.nextQuestion(ctx, cur, r)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) reinforce(ctx context.Context, cur State, r *Reply) error {
	pending := cur.Pending
	if pending == nil {
		pending = &reinforcement.Block{}
	}

	var msg Message
	if len(pending.Failed) == 0 {
		msg = Message{Kind: KindAcknowledgment, Text: explain.Acknowledgment(cur.Tier)}
	} else {
		text, err := e.deps.Explainer.Explain(ctx, explain.Request{
			FailedIDs: slices.Clone(pending.Failed),
			Topics:    slices.Clone(pending.Topics),
			Role:      cur.Role,
			Tier:      cur.Tier,
		})
		if err != nil {
			return collaboratorError("explain block", err)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("explain block: %w: empty explanation", ErrMalformedResponse)
		}
		msg = Message{Kind: KindExplanation, Text: text}
	}

	next := cur.Clone()
	next.Pending = nil
	next.Phase = PhaseEvaluating

	r.add(msg.Kind, msg.Text)
	e.record(&next, msg)
	e.commit(ctx, next)

	e.sessionEvent(ctx, next, "reinforce", strings.Join(pending.Failed, ","))
	e.logger.Info("block reinforced", zap.Int("failed", len(pending.Failed)))
	return nil
}

func (e *Engine) nextQuestion(ctx context.Context, cur State, r *Reply) error {
	q, excl, err := e.fetch(ctx, cur.Tier, cur.Exclusion, cur.Role)
	if err != nil {
		return err
	}

	next := cur.Clone()
	next.Phase = PhaseAwaitingAnswer
	next.Active = q
	next.Exclusion = excl

	msg := Message{Kind: KindQuestion, Text: questionText(q, e.cfg.Alphabet)}
	r.add(msg.Kind, msg.Text)
	e.record(&next, msg)
	e.commit(ctx, next)
	return nil
}

// fetch asks for the next question and applies the rotation reset when the
// source had to repeat one.
func (e *Engine) fetch(ctx context.Context, tier level.Tier, excl rotation.Set, role string) (*question.Question, rotation.Set, error) {
	q, err := e.deps.Questions.Next(ctx, question.Request{
		Tier:       tier,
		ExcludeIDs: slices.Clone(excl),
		Role:       role,
	})
	if err != nil {
		return nil, nil, collaboratorError("next question", err)
	}
	if q == nil {
		return nil, nil, collaboratorError("next question", fmt.Errorf("%w: nil question", question.ErrMalformed))
	}
	q = q.Clone()
	q.Tier = tier
	if err := question.Validate(q, e.cfg.Alphabet); err != nil {
		return nil, nil, collaboratorError("next question", err)
	}

	next, reset := e.cfg.Rotation.Served(excl, q.ID)
	if reset {
		e.logger.Info("question pool exhausted, rotation reset",
			zap.Stringer("tier", tier),
			zap.String("question_id", q.ID),
			zap.Int("excluded", len(excl)),
		)
	}
	return q, next, nil
}

func (e *Engine) record(s *State, msgs ...Message) {
	now := e.deps.Clock()
	for _, m := range msgs {
		sender := SenderTutor
		if m.Kind == KindInput {
			sender = SenderLearner
		}
		s.appendHistory(e.cfg.HistoryWindow, HistoryEntry{Sender: sender, Kind: m.Kind, Text: m.Text, At: now})
	}
}

func (e *Engine) answerEvent(ctx context.Context, s State, q *question.Question, label string, correct bool) {
	if e.deps.Events == nil {
		return
	}
	err := e.deps.Events.AppendAnswerEvent(context.WithoutCancel(ctx), store.AnswerEventData{
		UserID:     e.userID,
		SessionID:  s.SessionID,
		QuestionID: q.ID,
		Tier:       q.Tier.String(),
		Topic:      q.Topic,
		Label:      label,
		Correct:    correct,
	})
	if err != nil {
		e.logger.Warn("answer event failed", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
	}
}

func (e *Engine) sessionEvent(ctx context.Context, s State, action, detail string) {
	if e.deps.Events == nil {
		return
	}
	err := e.deps.Events.AppendSessionEvent(context.WithoutCancel(ctx), store.SessionEventData{
		UserID:    e.userID,
		SessionID: s.SessionID,
		Action:    action,
		Tier:      s.Tier.String(),
		Answered:  s.Totals.Answered,
		Correct:   s.Totals.Correct,
		Detail:    detail,
	})
	if err != nil {
		e.logger.Warn("session event failed", zap.Error(fmt.Errorf("%w: %w", ErrPersistence, err)))
	}
}
