package question

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/prltutor/internal/level"
)

//go:embed data/default_bank.yaml
var defaultBankYAML []byte

// bankFile is the on-disk layout of a question bank.
type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// Bank serves questions from a fixed, pre-authored pool.
type Bank struct {
	mu     sync.Mutex
	rng    *rand.Rand
	byTier map[level.Tier][]*Question
	byID   map[string]*Question
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithRand sets the random source used to draw questions.
func WithRand(r *rand.Rand) BankOption {
	return func(b *Bank) { b.rng = r }
}

// NewBank builds a bank from questions. Every question must pass validation
// against alphabet and ids must be unique.
func NewBank(questions []Question, alphabet Alphabet, opts ...BankOption) (*Bank, error) {
	b := &Bank{
		byTier: make(map[level.Tier][]*Question),
		byID:   make(map[string]*Question, len(questions)),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	for i := range questions {
		q := questions[i].Clone()
		if err := Validate(q, alphabet); err != nil {
			return nil, fmt.Errorf("question %d (%q): %w", i, q.ID, err)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		b.byID[q.ID] = q
		b.byTier[q.Tier] = append(b.byTier[q.Tier], q)
	}
	return b, nil
}

// LoadBank decodes a YAML question bank.
func LoadBank(r io.Reader, alphabet Alphabet, opts ...BankOption) (*Bank, error) {
	var f bankFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return NewBank(f.Questions, alphabet, opts...)
}

// LoadBankFile reads a YAML question bank from path.
func LoadBankFile(path string, alphabet Alphabet, opts ...BankOption) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return LoadBank(f, alphabet, opts...)
}

// DefaultBank returns the built-in occupational risk prevention bank.
func DefaultBank(alphabet Alphabet, opts ...BankOption) (*Bank, error) {
	return LoadBank(bytes.NewReader(defaultBankYAML), alphabet, opts...)
}

// Next draws a random question of the requested tier that is not excluded.
// When every question of the tier is excluded a repeat is returned; callers
// detect it through the exclusion set.
func (b *Bank) Next(ctx context.Context, req Request) (*Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := b.byTier[req.Tier]
	if len(pool) == 0 {
		return nil, fmt.Errorf("tier %s: %w", req.Tier, ErrNoQuestions)
	}

	candidates := make([]*Question, 0, len(pool))
	for _, q := range pool {
		if !slices.Contains(req.ExcludeIDs, q.ID) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = pool
	}

	b.mu.Lock()
	pick := candidates[b.rng.IntN(len(candidates))]
	b.mu.Unlock()

	return pick.Clone(), nil
}

// Lookup returns the question with the given id.
func (b *Bank) Lookup(id string) (*Question, bool) {
	q, ok := b.byID[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

// Count returns the number of questions authored for tier.
func (b *Bank) Count(tier level.Tier) int {
	return len(b.byTier[tier])
}

// Len returns the total number of questions.
func (b *Bank) Len() int {
	return len(b.byID)
}
