// Package reinforcement schedules remedial explanations after every block of
// answered questions.
package reinforcement

import (
	"fmt"
	"slices"
)

// DefaultThreshold is the number of answers that completes a block.
const DefaultThreshold = 5

// Block accumulates answers since the last reinforcement.
type Block struct {
	Count  int      `json:"count"`
	Failed []string `json:"failed,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// Clone returns an independent copy.
func (b Block) Clone() Block {
	return Block{
		Count:  b.Count,
		Failed: slices.Clone(b.Failed),
		Topics: slices.Clone(b.Topics),
	}
}

// Outcome is the result of recording one answer.
type Outcome struct {
	Block         Block
	BlockComplete bool

	// Failed and Topics are set only when the block completes.
	Failed []string
	Topics []string
}

// Scheduler decides when a block of answers is complete.
type Scheduler struct {
	Threshold int
}

// NewScheduler returns a scheduler with the given threshold, or
// DefaultThreshold when threshold is not positive.
func NewScheduler(threshold int) Scheduler {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Scheduler{Threshold: threshold}
}

// Record counts one answer. Incorrect answers keep their question id, and
// topic when known. The block is not reset; call Reset once the failures
// have been handed off.
func (s Scheduler) Record(b Block, wasCorrect bool, questionID, topic string) Outcome {
	next := b.Clone()
	next.Count++
	if !wasCorrect {
		next.Failed = append(next.Failed, questionID)
		if topic != "" && !slices.Contains(next.Topics, topic) {
			next.Topics = append(next.Topics, topic)
		}
	}

	out := Outcome{Block: next}
	if next.Count >= s.Threshold {
		out.BlockComplete = true
		out.Failed = slices.Clone(next.Failed)
		out.Topics = slices.Clone(next.Topics)
	}
	return out
}

// Reset starts a new block.
func (s Scheduler) Reset(Block) Block {
	return Block{}
}

// Validate checks the block can still be recorded into.
func (s Scheduler) Validate(b Block) error {
	if b.Count < 0 || b.Count >= s.Threshold {
		return fmt.Errorf("block count %d outside [0, %d)", b.Count, s.Threshold)
	}
	if len(b.Failed) > b.Count {
		return fmt.Errorf("block has %d failures for %d answers", len(b.Failed), b.Count)
	}
	return nil
}
