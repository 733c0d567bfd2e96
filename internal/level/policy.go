package level

import "fmt"

// Stats counts answers observed at a single tier.
type Stats struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

// Record counts one answer.
func (s Stats) Record(correct bool) Stats {
	s.Answered++
	if correct {
		s.Correct++
	}
	return s
}

// Rate returns the fraction of correct answers, or 0 when nothing was answered.
func (s Stats) Rate() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answered)
}

// Valid reports whether the counters are consistent.
func (s Stats) Valid() bool {
	return s.Answered >= 0 && s.Correct >= 0 && s.Correct <= s.Answered
}

// Direction of a tier change.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionPromote Direction = "promote"
	DirectionDemote  Direction = "demote"
)

// Change describes a tier transition.
type Change struct {
	From      Tier      `json:"from"`
	To        Tier      `json:"to"`
	Direction Direction `json:"direction"`
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Tier             Tier
	Changed          bool
	Direction        Direction
	StatsResetNeeded bool
}

// Change returns the transition described by d, or nil when the tier holds.
func (d Decision) Change(from Tier) *Change {
	if !d.Changed {
		return nil
	}
	return &Change{From: from, To: d.Tier, Direction: d.Direction}
}

// Policy decides promotion and demotion from the stats of the current tier.
type Policy struct {
	// MinSamples is the number of answers needed before any change.
	MinSamples int

	// PromoteAt is the inclusive success rate that promotes.
	PromoteAt float64

	// DemoteBelow is the exclusive success rate under which the tier demotes.
	DemoteBelow float64
}

// DefaultPolicy returns the standard thresholds: 5 samples, promote at 80%,
// demote under 50%.
func DefaultPolicy() Policy {
	return Policy{MinSamples: 5, PromoteAt: 0.80, DemoteBelow: 0.50}
}

// Validate checks the thresholds are usable.
func (p Policy) Validate() error {
	if p.MinSamples < 1 {
		return fmt.Errorf("min samples must be at least 1, got %d", p.MinSamples)
	}
	if p.PromoteAt <= 0 || p.PromoteAt > 1 {
		return fmt.Errorf("promote threshold must be in (0, 1], got %v", p.PromoteAt)
	}
	if p.DemoteBelow < 0 || p.DemoteBelow >= p.PromoteAt {
		return fmt.Errorf("demote threshold must be in [0, %v), got %v", p.PromoteAt, p.DemoteBelow)
	}
	return nil
}

// Evaluate applies the policy to the stats accumulated at tier. Stats of the
// new tier start from zero after any change.
func (p Policy) Evaluate(tier Tier, stats Stats) Decision {
	hold := Decision{Tier: tier}
	if stats.Answered < p.MinSamples {
		return hold
	}

	rate := stats.Rate()
	switch {
	case rate >= p.PromoteAt && tier < Highest:
		return Decision{Tier: tier.Next(), Changed: true, Direction: DirectionPromote, StatsResetNeeded: true}
	case rate < p.DemoteBelow && tier > Lowest:
		return Decision{Tier: tier.Prev(), Changed: true, Direction: DirectionDemote, StatsResetNeeded: true}
	}
	return hold
}
