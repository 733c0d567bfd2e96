package level

import (
	"fmt"
	"strings"
)

// Tier is an ordered difficulty tier.
type Tier int

const (
	TierBasic Tier = iota
	TierIntermediate
	TierAdvanced
)

// Lowest and Highest bound the tier ladder.
const (
	Lowest  = TierBasic
	Highest = TierAdvanced
)

// AllTiers lists the tiers from lowest to highest.
func AllTiers() []Tier {
	return []Tier{TierBasic, TierIntermediate, TierAdvanced}
}

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "BASIC"
	case TierIntermediate:
		return "INTERMEDIATE"
	case TierAdvanced:
		return "ADVANCED"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Valid reports whether t is on the ladder.
func (t Tier) Valid() bool {
	return t >= Lowest && t <= Highest
}

// Next returns the tier above t, or t itself at the top.
func (t Tier) Next() Tier {
	if t >= Highest {
		return Highest
	}
	return t + 1
}

// Prev returns the tier below t, or t itself at the bottom.
func (t Tier) Prev() Tier {
	if t <= Lowest {
		return Lowest
	}
	return t - 1
}

// ParseTier parses a tier name. Matching is case-insensitive.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BASIC":
		return TierBasic, nil
	case "INTERMEDIATE":
		return TierIntermediate, nil
	case "ADVANCED":
		return TierAdvanced, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler so tiers serialize by name.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
