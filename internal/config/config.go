// Package config loads prltutor settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/reinforcement"
	"github.com/abhisek/prltutor/internal/rotation"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Question sources.
const (
	SourceBank = "bank"
	SourceLLM  = "llm"
)

// Explainers.
const (
	ExplainerLLM    = "llm"
	ExplainerStatic = "static"
)

// Evaluators.
const (
	EvaluatorLocal = "local"
	EvaluatorLLM   = "llm" // verdict stays local, feedback text comes from the model
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Env      string `env:"PRLTUTOR_ENV" envDefault:"development"` // development or production
	LogFile  string `env:"PRLTUTOR_LOG_FILE"`                     // empty means stderr, except for the TUI
	LogLevel string `env:"PRLTUTOR_LOG_LEVEL" envDefault:"info"`
	User     string `env:"PRLTUTOR_USER"` // learner id override for the terminal client

	DB       string `env:"PRLTUTOR_DB"` // SQLite path, defaults under the data dir
	Store    string `env:"PRLTUTOR_STORE" envDefault:"sqlite"`
	RedisURL string `env:"PRLTUTOR_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	QuestionSource string `env:"PRLTUTOR_QUESTION_SOURCE" envDefault:"bank"`
	BankFile       string `env:"PRLTUTOR_BANK_FILE"` // empty means the embedded bank
	Explainer      string `env:"PRLTUTOR_EXPLAINER" envDefault:"static"`
	Evaluator      string `env:"PRLTUTOR_EVALUATOR" envDefault:"local"`

	Session Session

	TelegramToken string `env:"PRLTUTOR_TELEGRAM_TOKEN"`
}

// Session holds the tunables of the assessment engine.
type Session struct {
	BlockSize     int      `env:"PRLTUTOR_BLOCK_SIZE" envDefault:"5"`
	MinSamples    int      `env:"PRLTUTOR_MIN_SAMPLES" envDefault:"5"`
	PromoteAt     float64  `env:"PRLTUTOR_PROMOTE_AT" envDefault:"0.80"`
	DemoteBelow   float64  `env:"PRLTUTOR_DEMOTE_BELOW" envDefault:"0.50"`
	OptionLabels  []string `env:"PRLTUTOR_OPTION_LABELS" envDefault:"A,B,C,D" envSeparator:","`
	ExclusionCap  int      `env:"PRLTUTOR_EXCLUSION_CAP" envDefault:"50"`
	HistoryWindow int      `env:"PRLTUTOR_HISTORY_WINDOW" envDefault:"50"`
	SnapshotKeep  int      `env:"PRLTUTOR_SNAPSHOT_KEEP" envDefault:"5"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and the session tunables.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("PRLTUTOR_STORE: unknown store %q", c.Store)
	}
	switch c.QuestionSource {
	case SourceBank, SourceLLM:
	default:
		return fmt.Errorf("PRLTUTOR_QUESTION_SOURCE: unknown source %q", c.QuestionSource)
	}
	switch c.Explainer {
	case ExplainerLLM, ExplainerStatic:
	default:
		return fmt.Errorf("PRLTUTOR_EXPLAINER: unknown explainer %q", c.Explainer)
	}
	switch c.Evaluator {
	case EvaluatorLocal, EvaluatorLLM:
	default:
		return fmt.Errorf("PRLTUTOR_EVALUATOR: unknown evaluator %q", c.Evaluator)
	}
	if err := c.Session.Policy().Validate(); err != nil {
		return err
	}
	if _, err := c.Session.Alphabet(); err != nil {
		return err
	}
	if c.Session.BlockSize < 1 {
		return fmt.Errorf("PRLTUTOR_BLOCK_SIZE must be positive, got %d", c.Session.BlockSize)
	}
	if c.Session.ExclusionCap < 1 {
		return fmt.Errorf("PRLTUTOR_EXCLUSION_CAP must be positive, got %d", c.Session.ExclusionCap)
	}
	return nil
}

// Production reports whether the production logger should be used.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Policy returns the level progression policy.
func (s Session) Policy() level.Policy {
	return level.Policy{
		MinSamples:  s.MinSamples,
		PromoteAt:   s.PromoteAt,
		DemoteBelow: s.DemoteBelow,
	}
}

// Scheduler returns the reinforcement scheduler.
func (s Session) Scheduler() reinforcement.Scheduler {
	return reinforcement.NewScheduler(s.BlockSize)
}

// Rotation returns the question rotation policy.
func (s Session) Rotation() rotation.Policy {
	return rotation.Policy{Cap: s.ExclusionCap}
}

// Alphabet returns the configured option labels.
func (s Session) Alphabet() (question.Alphabet, error) {
	return question.ParseAlphabet(s.OptionLabels)
}
