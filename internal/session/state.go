package session

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/reinforcement"
	"github.com/abhisek/prltutor/internal/rotation"
)

// Phase is the position of a session in the assessment flow.
type Phase int

const (
	PhaseCollectingRole Phase = iota // Waiting for the learner's role
	PhaseAwaitingAnswer              // A question is on screen
	PhaseEvaluating                  // Answer committed, next question pending
	PhaseReinforcing                 // Block complete, explanation pending
	PhaseTerminated                  // Logged out
)

var phaseNames = [...]string{
	PhaseCollectingRole: "COLLECTING_ROLE",
	PhaseAwaitingAnswer: "AWAITING_ANSWER",
	PhaseEvaluating:     "EVALUATING",
	PhaseReinforcing:    "REINFORCING",
	PhaseTerminated:     "TERMINATED",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Sender of a history entry.
const (
	SenderLearner = "learner"
	SenderTutor   = "tutor"
)

// HistoryEntry is one line of the conversation transcript.
type HistoryEntry struct {
	Sender string
	Kind   MessageKind
	Text   string
	At     time.Time
}

// State is everything the engine knows about one learner's session.
type State struct {
	SessionID string
	Phase     Phase
	Tier      level.Tier

	// Role is set once while collecting the role and never changes after.
	Role string

	// TierStats holds answer counts per tier since the tier was last entered.
	TierStats map[level.Tier]level.Stats

	// Totals counts every answer of the session.
	Totals level.Stats

	// Exclusion lists questions presented since the last tier change.
	Exclusion rotation.Set

	Block reinforcement.Block

	// Pending is the completed block awaiting reinforcement. Set iff
	// Phase is PhaseReinforcing.
	Pending *reinforcement.Block

	// Active is the question on screen. Set iff Phase is PhaseAwaitingAnswer.
	Active *question.Question

	LastTierChange *level.Change
	History        []HistoryEntry
	UpdatedAt      time.Time
}

// NewState returns a fresh session at the lowest tier.
func NewState(sessionID string, now time.Time) State {
	return State{
		SessionID: sessionID,
		Phase:     PhaseCollectingRole,
		Tier:      level.Lowest,
		TierStats: map[level.Tier]level.Stats{level.Lowest: {}},
		Exclusion: rotation.Set{},
		UpdatedAt: now,
	}
}

// Stats returns the counters of the current tier.
func (s State) Stats() level.Stats {
	return s.TierStats[s.Tier]
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.TierStats = maps.Clone(s.TierStats)
	if c.TierStats == nil {
		c.TierStats = map[level.Tier]level.Stats{}
	}
	c.Exclusion = s.Exclusion.Clone()
	c.Block = s.Block.Clone()
	if s.Pending != nil {
		p := s.Pending.Clone()
		c.Pending = &p
	}
	c.Active = s.Active.Clone()
	if s.LastTierChange != nil {
		ch := *s.LastTierChange
		c.LastTierChange = &ch
	}
	c.History = slices.Clone(s.History)
	return c
}

// Validate checks the invariants that must hold between steps.
func (s State) Validate(sched reinforcement.Scheduler, alphabet question.Alphabet) error {
	if s.Phase < PhaseCollectingRole || s.Phase > PhaseTerminated {
		return fmt.Errorf("invalid phase %d", int(s.Phase))
	}
	if !s.Tier.Valid() {
		return fmt.Errorf("invalid tier %d", int(s.Tier))
	}
	if (s.Active != nil) != (s.Phase == PhaseAwaitingAnswer) {
		return fmt.Errorf("active question present=%t in phase %s", s.Active != nil, s.Phase)
	}
	if (s.Pending != nil) != (s.Phase == PhaseReinforcing) {
		return fmt.Errorf("pending block present=%t in phase %s", s.Pending != nil, s.Phase)
	}
	if s.Active != nil {
		if err := question.Validate(s.Active, alphabet); err != nil {
			return fmt.Errorf("active question: %w", err)
		}
	}
	if err := sched.Validate(s.Block); err != nil {
		return err
	}
	for tier, st := range s.TierStats {
		if !tier.Valid() {
			return fmt.Errorf("stats for invalid tier %d", int(tier))
		}
		if !st.Valid() {
			return fmt.Errorf("inconsistent stats at %s: %d/%d", tier, st.Correct, st.Answered)
		}
	}
	if !s.Totals.Valid() {
		return fmt.Errorf("inconsistent totals: %d/%d", s.Totals.Correct, s.Totals.Answered)
	}
	return nil
}

// appendHistory adds an entry and keeps the trailing window.
func (s *State) appendHistory(window int, e HistoryEntry) {
	if strings.TrimSpace(e.Text) == "" {
		return
	}
	s.History = append(s.History, e)
	if window > 0 && len(s.History) > window {
		s.History = slices.Clone(s.History[len(s.History)-window:])
	}
}
