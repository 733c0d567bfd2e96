package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/abhisek/prltutor/internal/evaluation"
	"github.com/abhisek/prltutor/internal/explain"
	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/llm"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/store"
)

// --- fakes ---

func testQuestion(id string, tier level.Tier) *question.Question {
	return &question.Question{
		ID:     id,
		Tier:   tier,
		Topic:  "topic-" + id,
		Prompt: "Prompt " + id,
		Options: []question.Option{
			{Label: "A", Text: "right"},
			{Label: "B", Text: "wrong one"},
			{Label: "C", Text: "wrong two"},
			{Label: "D", Text: "wrong three"},
		},
		Correct:     "A",
		Explanation: "Because A.",
	}
}

type fakeQuestions struct {
	mu       sync.Mutex
	reqs     []question.Request
	errs     []error
	override []*question.Question
	n        int

	// before runs ahead of each request, outside the fake's lock.
	before func(question.Request)
}

func (f *fakeQuestions) Next(_ context.Context, req question.Request) (*question.Question, error) {
	if f.before != nil {
		f.before(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.override) > 0 {
		q := f.override[0]
		f.override = f.override[1:]
		return q, nil
	}
	f.n++
	return testQuestion(fmt.Sprintf("q%d", f.n), req.Tier), nil
}

func (f *fakeQuestions) lastRequest(t *testing.T) question.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		t.Fatal("no question requests")
	}
	return f.reqs[len(f.reqs)-1]
}

func (f *fakeQuestions) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeEvaluator struct {
	mu      sync.Mutex
	n       int
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req evaluation.Request) (evaluation.Result, error) {
	f.mu.Lock()
	f.n++
	err := f.err
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return evaluation.Result{}, err
	}
	return evaluation.NewLocal().Evaluate(ctx, req)
}

func (f *fakeEvaluator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakeExplainer struct {
	mu   sync.Mutex
	reqs []explain.Request
	errs []error
}

func (f *fakeExplainer) Explain(_ context.Context, req explain.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "review: " + strings.Join(req.FailedIDs, ","), nil
}

type memorySnapshots struct {
	mu      sync.Mutex
	byUser  map[string][]*store.Snapshot
	seq     int64
	saveErr error
	loadErr error
	deletes int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{byUser: make(map[string][]*store.Snapshot)}
}

func (m *memorySnapshots) Save(_ context.Context, snap *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.seq++
	c := *snap
	c.Sequence = m.seq
	m.byUser[snap.UserID] = append(m.byUser[snap.UserID], &c)
	return nil
}

func (m *memorySnapshots) Latest(_ context.Context, userID string) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	list := m.byUser[userID]
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func (m *memorySnapshots) Prune(_ context.Context, userID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if list := m.byUser[userID]; len(list) > keep {
		m.byUser[userID] = list[len(list)-keep:]
	}
	return nil
}

func (m *memorySnapshots) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.byUser, userID)
	return nil
}

func (m *memorySnapshots) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser[userID])
}

type harness struct {
	questions *fakeQuestions
	evaluator *fakeEvaluator
	explainer *fakeExplainer
	snapshots *memorySnapshots
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		questions: &fakeQuestions{},
		evaluator: &fakeEvaluator{},
		explainer: &fakeExplainer{},
		snapshots: newMemorySnapshots(),
	}
	h.deps = Deps{
		Questions: h.questions,
		Evaluator: h.evaluator,
		Explainer: h.explainer,
		Snapshots: h.snapshots,
		Logger:    zaptest.NewLogger(t),
	}
	return h
}

func (h *harness) open(t *testing.T, userID string) *Engine {
	t.Helper()
	e, err := Open(context.Background(), userID, h.deps, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

// started returns an engine that has collected its role.
func (h *harness) started(t *testing.T, userID string) *Engine {
	t.Helper()
	e := h.open(t, userID)
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.Submit(context.Background(), "comercial"); err != nil {
		t.Fatalf("Submit role: %v", err)
	}
	return e
}

func submit(t *testing.T, e *Engine, input string) *Reply {
	t.Helper()
	r, err := e.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit(%q): %v", input, err)
	}
	return r
}

func hasKind(r *Reply, kind MessageKind) bool {
	for _, m := range r.Messages {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// --- scenarios ---

func TestScenarioA_RoleStartsAssessment(t *testing.T) {
	h := newHarness(t)
	e := h.open(t, "u1")

	r, err := e.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Phase != PhaseCollectingRole || !hasKind(r, KindGreeting) {
		t.Fatalf("unexpected start reply: %+v", r)
	}

	r = submit(t, e, "  comercial ")
	if r.Phase != PhaseAwaitingAnswer {
		t.Fatalf("phase = %s, want AWAITING_ANSWER", r.Phase)
	}
	if !hasKind(r, KindRoleAck) || !hasKind(r, KindQuestion) {
		t.Errorf("expected role ack and question, got %+v", r.Messages)
	}
	if r.Question == nil || r.Question.ID != "q1" {
		t.Fatalf("expected question q1, got %+v", r.Question)
	}

	s := e.State()
	if s.Tier != level.TierBasic {
		t.Errorf("tier = %s, want BASIC", s.Tier)
	}
	if s.Role != "comercial" {
		t.Errorf("role = %q", s.Role)
	}
	if got := s.TierStats[level.TierBasic]; got != (level.Stats{}) {
		t.Errorf("BASIC stats = %+v, want {0,0}", got)
	}

	req := h.questions.lastRequest(t)
	if req.Tier != level.TierBasic || len(req.ExcludeIDs) != 0 || req.Role != "comercial" {
		t.Errorf("unexpected first request: %+v", req)
	}
}

func TestScenarioB_PromotionResetsStatsAndExclusion(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	for i := 0; i < 4; i++ {
		submit(t, e, "A")
	}
	if got := e.State().TierStats[level.TierBasic]; got != (level.Stats{Answered: 4, Correct: 4}) {
		t.Fatalf("BASIC stats = %+v, want {4,4}", got)
	}
	if got := len(e.State().Exclusion); got != 4 {
		t.Fatalf("exclusion size = %d, want 4", got)
	}

	r := submit(t, e, "a")

	s := e.State()
	if s.Tier != level.TierIntermediate {
		t.Fatalf("tier = %s, want INTERMEDIATE", s.Tier)
	}
	if got := s.TierStats[level.TierBasic]; got != (level.Stats{Answered: 5, Correct: 5}) {
		t.Errorf("BASIC stats = %+v, want {5,5}", got)
	}
	if got := s.TierStats[level.TierIntermediate]; got != (level.Stats{}) {
		t.Errorf("INTERMEDIATE stats = %+v, want {0,0}", got)
	}
	if len(s.Exclusion) != 0 {
		t.Errorf("exclusion = %v, want empty", s.Exclusion)
	}
	if r.TierChange == nil || r.TierChange.Direction != level.DirectionPromote {
		t.Errorf("expected promotion in reply, got %+v", r.TierChange)
	}
	if !hasKind(r, KindTierChange) || !hasKind(r, KindAcknowledgment) {
		t.Errorf("expected tier change and acknowledgment, got %+v", r.Messages)
	}

	req := h.questions.lastRequest(t)
	if req.Tier != level.TierIntermediate || len(req.ExcludeIDs) != 0 {
		t.Errorf("next request = %+v, want INTERMEDIATE with no exclusions", req)
	}
	if r.Question == nil || r.Question.Tier != level.TierIntermediate {
		t.Errorf("expected an INTERMEDIATE question, got %+v", r.Question)
	}
}

func TestScenarioC_BlockCompletionReinforcesFailures(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	// q1..q4: three right, one wrong.
	for _, in := range []string{"A", "B", "A", "A"} {
		submit(t, e, in)
	}
	if got := e.State().Block.Count; got != 4 {
		t.Fatalf("block count = %d, want 4", got)
	}

	r := submit(t, e, "C") // q5 wrong

	if len(h.explainer.reqs) != 1 {
		t.Fatalf("explainer calls = %d, want 1", len(h.explainer.reqs))
	}
	got := h.explainer.reqs[0]
	if strings.Join(got.FailedIDs, ",") != "q2,q5" {
		t.Errorf("failed ids = %v, want [q2 q5]", got.FailedIDs)
	}
	if got.Role != "comercial" || got.Tier != level.TierBasic {
		t.Errorf("unexpected explain request: %+v", got)
	}
	if !hasKind(r, KindExplanation) || !hasKind(r, KindFeedback) {
		t.Errorf("expected feedback and explanation, got %+v", r.Messages)
	}

	s := e.State()
	if s.Block.Count != 0 || len(s.Block.Failed) != 0 || s.Pending != nil {
		t.Errorf("block not reset: %+v pending=%v", s.Block, s.Pending)
	}
	if s.Phase != PhaseAwaitingAnswer {
		t.Errorf("phase = %s, want AWAITING_ANSWER", s.Phase)
	}
	if s.Tier != level.TierBasic {
		t.Errorf("tier = %s, 3/5 should hold BASIC", s.Tier)
	}
}

func TestScenarioC_PerfectBlockAcknowledged(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	var r *Reply
	for i := 0; i < 5; i++ {
		r = submit(t, e, "A")
	}
	if len(h.explainer.reqs) != 0 {
		t.Errorf("explainer should not be called for a perfect block")
	}
	if !hasKind(r, KindAcknowledgment) {
		t.Errorf("expected acknowledgment, got %+v", r.Messages)
	}
}

func TestScenarioD_InvalidLabelRejected(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	before := e.State()
	calls := h.questions.calls()

	r, err := e.Submit(context.Background(), "E")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if r != nil {
		t.Errorf("expected nil reply, got %+v", r)
	}
	if h.evaluator.calls() != 0 || h.questions.calls() != calls || len(h.explainer.reqs) != 0 {
		t.Error("no collaborator may be called for invalid input")
	}
	after := e.State()
	if after.Phase != PhaseAwaitingAnswer || after.Active.ID != before.Active.ID || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("state changed: before=%+v after=%+v", before, after)
	}
}

func TestCollectRole_EmptyRejected(t *testing.T) {
	h := newHarness(t)
	e := h.open(t, "u1")

	_, err := e.Submit(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if h.questions.calls() != 0 {
		t.Error("question source must not be called")
	}
}

func TestCollectRole_QuestionFailureLeavesRoleUnset(t *testing.T) {
	h := newHarness(t)
	h.questions.errs = []error{errors.New("timeout")}
	e := h.open(t, "u1")

	_, err := e.Submit(context.Background(), "welder")
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v, want ErrCollaboratorUnavailable", err)
	}
	s := e.State()
	if s.Phase != PhaseCollectingRole || s.Role != "" {
		t.Fatalf("state mutated: phase=%s role=%q", s.Phase, s.Role)
	}

	r := submit(t, e, "welder")
	if r.Phase != PhaseAwaitingAnswer {
		t.Fatalf("retry phase = %s", r.Phase)
	}
}

// --- error atomicity ---

func TestEvaluationFailure_NoMutation(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	before := e.State()

	h.evaluator.err = errors.New("connection refused")
	_, err := e.Submit(context.Background(), "A")
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v, want ErrCollaboratorUnavailable", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Error("plain failures must not be reported as malformed")
	}

	after := e.State()
	if after.Phase != before.Phase || after.Totals != before.Totals || after.Block.Count != before.Block.Count ||
		len(after.Exclusion) != len(before.Exclusion) || after.Active.ID != before.Active.ID {
		t.Fatalf("state mutated on evaluation failure: before=%+v after=%+v", before, after)
	}

	h.evaluator.err = nil
	submit(t, e, "A")
	if got := e.State().Totals; got != (level.Stats{Answered: 1, Correct: 1}) {
		t.Errorf("totals after retry = %+v", got)
	}
}

func TestNextQuestionFailure_ResumeRetriesFetch(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	h.questions.errs = []error{errors.New("503")}
	r, err := e.Submit(context.Background(), "B")
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v, want ErrCollaboratorUnavailable", err)
	}
	if r == nil || !hasKind(r, KindFeedback) {
		t.Fatalf("expected partial reply with feedback, got %+v", r)
	}
	if r.Phase != PhaseEvaluating || r.Question != nil {
		t.Fatalf("phase = %s question=%v, want EVALUATING without question", r.Phase, r.Question)
	}

	s := e.State()
	if s.Totals != (level.Stats{Answered: 1, Correct: 0}) {
		t.Errorf("answer not committed: %+v", s.Totals)
	}
	if s.Active != nil {
		t.Error("active question must be cleared")
	}

	r, err = e.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if r.Phase != PhaseAwaitingAnswer || r.Question == nil {
		t.Fatalf("resume reply = %+v", r)
	}
	if got := e.State().Totals; got.Answered != 1 {
		t.Errorf("resume must not re-count the answer: %+v", got)
	}
}

func TestExplanationFailure_RetryViaSubmit(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	for i := 0; i < 4; i++ {
		submit(t, e, "A")
	}

	h.explainer.errs = []error{errors.New("overloaded")}
	_, err := e.Submit(context.Background(), "B")
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("err = %v, want ErrCollaboratorUnavailable", err)
	}
	s := e.State()
	if s.Phase != PhaseReinforcing || s.Pending == nil || s.Block.Count != 0 {
		t.Fatalf("unexpected state: phase=%s pending=%v block=%+v", s.Phase, s.Pending, s.Block)
	}

	r := submit(t, e, "ignored")
	if !hasKind(r, KindExplanation) || r.Phase != PhaseAwaitingAnswer {
		t.Fatalf("retry reply = %+v", r)
	}
	if len(h.explainer.reqs) != 2 {
		t.Errorf("explainer calls = %d, want 2", len(h.explainer.reqs))
	}
}

func TestMalformedQuestion_Classified(t *testing.T) {
	h := newHarness(t)
	bad := testQuestion("bad", level.TierBasic)
	bad.Options = bad.Options[:3]
	h.questions.override = []*question.Question{bad}
	e := h.open(t, "u1")

	_, err := e.Submit(context.Background(), "welder")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Error("malformed responses must also match ErrCollaboratorUnavailable")
	}
	if e.State().Phase != PhaseCollectingRole {
		t.Error("phase must not change")
	}
}

func TestEmptyExplanation_Malformed(t *testing.T) {
	h := newHarness(t)
	h.deps.Explainer = explainerFunc(func(context.Context, explain.Request) (string, error) { return "  ", nil })
	e := h.started(t, "u1")
	for i := 0; i < 4; i++ {
		submit(t, e, "A")
	}
	_, err := e.Submit(context.Background(), "B")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

type explainerFunc func(context.Context, explain.Request) (string, error)

func (f explainerFunc) Explain(ctx context.Context, req explain.Request) (string, error) {
	return f(ctx, req)
}

// --- level changes and rotation ---

func TestDemotion(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	for i := 0; i < 5; i++ {
		submit(t, e, "A")
	}
	if e.State().Tier != level.TierIntermediate {
		t.Fatal("setup: expected promotion")
	}

	for _, in := range []string{"A", "A", "B", "B"} {
		submit(t, e, in)
	}

	// The tenth answer demotes and completes a failing block at once.
	var atRequest State
	h.questions.before = func(question.Request) { atRequest = e.State() }
	r := submit(t, e, "B")
	h.questions.before = nil

	s := e.State()
	if s.Tier != level.TierBasic {
		t.Fatalf("tier = %s, 2/5 should demote to BASIC", s.Tier)
	}
	if r.TierChange == nil || r.TierChange.Direction != level.DirectionDemote {
		t.Errorf("expected demotion, got %+v", r.TierChange)
	}
	if got := s.TierStats[level.TierBasic]; got != (level.Stats{}) {
		t.Errorf("re-entered BASIC stats = %+v, want {0,0}", got)
	}
	if s.LastTierChange == nil || s.LastTierChange.To != level.TierBasic {
		t.Errorf("LastTierChange = %+v", s.LastTierChange)
	}

	// The explanation is written for the tier the learner lands on.
	if len(h.explainer.reqs) != 1 {
		t.Fatalf("explainer calls = %d, want 1", len(h.explainer.reqs))
	}
	xreq := h.explainer.reqs[0]
	if xreq.Tier != level.TierBasic {
		t.Errorf("explain tier = %s, want BASIC", xreq.Tier)
	}
	if got := strings.Join(xreq.FailedIDs, ","); got != "q8,q9,q10" {
		t.Errorf("explain failed ids = %s, want q8,q9,q10", got)
	}

	// Block and pending reinforcement are cleared before the next question
	// is requested, and the request uses the new tier with no exclusions.
	if atRequest.Block.Count != 0 || len(atRequest.Block.Failed) != 0 {
		t.Errorf("block at request = %+v, want empty", atRequest.Block)
	}
	if atRequest.Pending != nil {
		t.Errorf("pending at request = %+v, want nil", atRequest.Pending)
	}
	if atRequest.Phase != PhaseEvaluating || atRequest.Tier != level.TierBasic {
		t.Errorf("state at request: phase=%s tier=%s", atRequest.Phase, atRequest.Tier)
	}
	req := h.questions.lastRequest(t)
	if req.Tier != level.TierBasic || len(req.ExcludeIDs) != 0 {
		t.Errorf("question request = %+v, want BASIC with no exclusions", req)
	}

	var kinds []string
	for _, m := range r.Messages {
		kinds = append(kinds, string(m.Kind))
	}
	if got := strings.Join(kinds, ","); got != "feedback,tier_change,explanation,question" {
		t.Errorf("reply kinds = %s", got)
	}
}

func TestHalfCorrectHolds(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	for i := 0; i < 5; i++ {
		submit(t, e, "A")
	}
	// INTERMEDIATE: 3/5 and then 3/6, which sits exactly on the demotion line.
	for _, in := range []string{"A", "B", "A", "B", "A", "B"} {
		submit(t, e, in)
	}
	s := e.State()
	if s.Tier != level.TierIntermediate {
		t.Fatalf("tier = %s, a 0.50 rate should hold", s.Tier)
	}
	if got := s.Stats(); got != (level.Stats{Answered: 6, Correct: 3}) {
		t.Errorf("INTERMEDIATE stats = %+v, want {6,3}", got)
	}
}

func TestExclusionGrowsAndResetsOnRepeat(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	submit(t, e, "B")
	submit(t, e, "B")
	if got := e.State().Exclusion; strings.Join(got, ",") != "q1,q2" {
		t.Fatalf("exclusion = %v, want [q1 q2]", got)
	}
	if req := h.questions.lastRequest(t); strings.Join(req.ExcludeIDs, ",") != "q1,q2" {
		t.Fatalf("request exclusions = %v", req.ExcludeIDs)
	}

	// The source runs dry and repeats q1.
	h.questions.override = []*question.Question{testQuestion("q1", level.TierBasic)}
	r := submit(t, e, "B")
	if r.Question == nil || r.Question.ID != "q1" {
		t.Fatalf("expected repeated q1, got %+v", r.Question)
	}
	if got := e.State().Exclusion; len(got) != 0 {
		t.Errorf("exclusion = %v, want reset", got)
	}
}

// --- concurrency and lifecycle ---

func TestBusyRejectsOverlappingSubmit(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")

	h.evaluator.mu.Lock()
	h.evaluator.block = make(chan struct{})
	h.evaluator.entered = make(chan struct{}, 1)
	block, entered := h.evaluator.block, h.evaluator.entered
	h.evaluator.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), "A")
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("evaluator not reached")
	}

	if _, err := e.Submit(context.Background(), "B"); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping submit err = %v, want ErrBusy", err)
	}
	if _, err := e.Resume(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping resume err = %v, want ErrBusy", err)
	}
	if err := e.Logout(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping logout err = %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := e.State().Totals.Answered; got != 1 {
		t.Errorf("answered = %d, want 1", got)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	submit(t, e, "A")
	if h.snapshots.count("u1") == 0 {
		t.Fatal("expected snapshots before logout")
	}

	if err := e.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if e.State().Phase != PhaseTerminated {
		t.Errorf("phase = %s, want TERMINATED", e.State().Phase)
	}
	if h.snapshots.count("u1") != 0 || h.snapshots.deletes != 1 {
		t.Errorf("snapshot not deleted")
	}
	if _, err := e.Submit(context.Background(), "A"); !errors.Is(err, ErrTerminated) {
		t.Errorf("submit after logout err = %v, want ErrTerminated", err)
	}
	if err := e.Logout(context.Background()); err != nil {
		t.Errorf("second logout: %v", err)
	}

	fresh := h.open(t, "u1")
	if s := fresh.State(); s.Phase != PhaseCollectingRole || s.Role != "" {
		t.Errorf("expected fresh session after logout, got %+v", s)
	}
}

// --- persistence ---

func TestRestore_ResumesWhereLeft(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	submit(t, e, "A")
	submit(t, e, "B")
	want := e.State()

	again := h.open(t, "u1")
	got := again.State()
	if got.SessionID != want.SessionID || got.Role != "comercial" || got.Phase != PhaseAwaitingAnswer {
		t.Fatalf("restored %+v", got)
	}
	if got.Totals != want.Totals || got.Block.Count != 2 || got.Active.ID != want.Active.ID {
		t.Errorf("restored counters differ: got=%+v want=%+v", got, want)
	}

	r, err := again.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if hasKind(r, KindGreeting) || !hasKind(r, KindInfo) || !hasKind(r, KindQuestion) {
		t.Errorf("restored start = %+v", r.Messages)
	}
	if r.Question == nil || r.Question.ID != want.Active.ID {
		t.Errorf("expected active question re-presented, got %+v", r.Question)
	}
}

func TestRestore_InterruptedStepCompletesOnStart(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	h.questions.errs = []error{errors.New("down")}
	if _, err := e.Submit(context.Background(), "A"); err == nil {
		t.Fatal("expected failure")
	}

	again := h.open(t, "u1")
	if again.State().Phase != PhaseEvaluating {
		t.Fatalf("restored phase = %s", again.State().Phase)
	}
	r, err := again.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Phase != PhaseAwaitingAnswer || r.Question == nil {
		t.Errorf("start reply = %+v", r)
	}
}

func TestRestore_PerUserIsolation(t *testing.T) {
	h := newHarness(t)
	a := h.started(t, "alice")
	submit(t, a, "A")

	b := h.open(t, "bob")
	if s := b.State(); s.Phase != PhaseCollectingRole || s.Totals.Answered != 0 {
		t.Fatalf("bob sees alice's state: %+v", s)
	}
	if a.State().SessionID == b.State().SessionID {
		t.Error("sessions must have distinct ids")
	}
}

func TestRestore_LoadFailureStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.snapshots.loadErr = errors.New("disk I/O error")
	e := h.open(t, "u1")
	if e.State().Phase != PhaseCollectingRole {
		t.Fatal("expected fresh session")
	}
}

func TestRestore_InvalidSnapshotStartsFresh(t *testing.T) {
	h := newHarness(t)
	bad := NewState("s1", time.Now())
	bad.Phase = PhaseAwaitingAnswer // no active question
	_ = h.snapshots.Save(context.Background(), &store.Snapshot{UserID: "u1", Data: ToSnapshot(bad)})

	e := h.open(t, "u1")
	if s := e.State(); s.Phase != PhaseCollectingRole || s.SessionID == "s1" {
		t.Fatalf("expected fresh session, got %+v", s)
	}
}

func TestSaveFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	h.snapshots.saveErr = errors.New("readonly database")
	e := h.started(t, "u1")
	r := submit(t, e, "A")
	if r.Phase != PhaseAwaitingAnswer {
		t.Fatalf("phase = %s", r.Phase)
	}
}

func TestSnapshotsPruned(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	for i := 0; i < 8; i++ {
		submit(t, e, "A")
	}
	if got := h.snapshots.count("u1"); got > DefaultConfig().SnapshotKeep {
		t.Errorf("kept %d snapshots, want at most %d", got, DefaultConfig().SnapshotKeep)
	}
}

func TestHistoryWindow(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.HistoryWindow = 4
	e, err := Open(context.Background(), "u1", h.deps, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	submit(t, e, "welder")
	submit(t, e, "A")

	hist := e.State().History
	if len(hist) != 4 {
		t.Fatalf("history len = %d, want 4", len(hist))
	}
	last := hist[len(hist)-1]
	if last.Kind != KindQuestion || last.Sender != SenderTutor {
		t.Errorf("last entry = %+v", last)
	}
}

func TestProgress(t *testing.T) {
	h := newHarness(t)
	e := h.started(t, "u1")
	submit(t, e, "A")
	r := submit(t, e, "B")

	p := e.Progress()
	if p.Answered != 2 || p.Correct != 1 || p.Tier != level.TierBasic {
		t.Fatalf("progress = %+v", p)
	}
	if r.Progress != p {
		t.Errorf("reply progress %+v != %+v", r.Progress, p)
	}
	if p.Text() != "📊 Progress: 1/2 correct | Level: BASIC" {
		t.Errorf("Text() = %q", p.Text())
	}
}

func TestOpen_Validation(t *testing.T) {
	h := newHarness(t)
	if _, err := Open(context.Background(), "", h.deps, DefaultConfig()); err == nil {
		t.Error("expected error for empty user id")
	}
	deps := h.deps
	deps.Explainer = nil
	if _, err := Open(context.Background(), "u1", deps, DefaultConfig()); err == nil {
		t.Error("expected error for missing explainer")
	}
	cfg := DefaultConfig()
	cfg.Policy.DemoteBelow = 0.9
	if _, err := Open(context.Background(), "u1", h.deps, cfg); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func generatedQuestion(prompt string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(fmt.Sprintf(`{
		"prompt": %q,
		"topic": "signs",
		"options": [
			{"label": "A", "text": "one"},
			{"label": "B", "text": "two"},
			{"label": "C", "text": "three"},
			{"label": "D", "text": "four"}
		],
		"correct_label": "A",
		"explanation": "Because A."
	}`, prompt))}
}

func TestDuplicateGenerationKeepsRotation(t *testing.T) {
	h := newHarness(t)
	mock := llm.NewMockProvider(
		generatedQuestion("P1"),
		generatedQuestion("P2"),
		generatedQuestion("P1"),
		generatedQuestion("P3"),
	)
	h.deps.Questions = question.NewLLMSource(mock, question.DefaultAlphabet, question.DefaultLLMConfig())
	e := h.started(t, "u1")
	p1 := e.State().Active.ID

	submit(t, e, "A")
	p2 := e.State().Active.ID

	r := submit(t, e, "A")
	s := e.State()
	if s.Active == nil || s.Active.ID == p1 || s.Active.ID == p2 {
		t.Fatalf("active = %+v, want a fresh question", s.Active)
	}
	if got := strings.Join(s.Exclusion, ","); got != p1+","+p2 {
		t.Errorf("exclusion = %s, want %s,%s", got, p1, p2)
	}
	if !strings.Contains(r.Text(), "P3") {
		t.Errorf("reply = %q, want P3", r.Text())
	}
	if mock.CallCount() != 4 {
		t.Errorf("generations = %d, want 4", mock.CallCount())
	}
}
