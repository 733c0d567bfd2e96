package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/config"
	"github.com/abhisek/prltutor/internal/evaluation"
	"github.com/abhisek/prltutor/internal/explain"
	"github.com/abhisek/prltutor/internal/llm"
	"github.com/abhisek/prltutor/internal/question"
	"github.com/abhisek/prltutor/internal/session"
	"github.com/abhisek/prltutor/internal/store"
	"github.com/abhisek/prltutor/internal/store/redisstore"
)

// runtime holds the collaborators shared by every engine of a process.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *store.Store
	snapshots store.SnapshotRepo
	events    store.EventRepo

	questions question.Provider
	evaluator evaluation.Evaluator
	explainer explain.Explainer
	engineCfg session.Config

	closers []func() error
}

// openRuntime opens storage and builds the configured collaborators.
func openRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// openStorage opens only the stores, for commands that never run an engine.
func openStorage(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: zap.NewNop()}
	if err := rt.openStores(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) open(ctx context.Context) error {
	if err := rt.openStores(ctx); err != nil {
		return err
	}
	return rt.openCollaborators(ctx)
}

func (rt *runtime) openStores(ctx context.Context) error {
	cfg := rt.cfg

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)
	rt.events = st.EventRepo()
	rt.snapshots = st.SnapshotRepo()

	if cfg.Store == config.StoreRedis {
		repo, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		rt.snapshots = repo
		rt.closers = append(rt.closers, repo.Close)
	}
	return nil
}

func (rt *runtime) openCollaborators(ctx context.Context) error {
	cfg := rt.cfg

	alphabet, err := cfg.Session.Alphabet()
	if err != nil {
		return err
	}
	rt.engineCfg = session.Config{
		Policy:        cfg.Session.Policy(),
		Scheduler:     cfg.Session.Scheduler(),
		Rotation:      cfg.Session.Rotation(),
		Alphabet:      alphabet,
		HistoryWindow: cfg.Session.HistoryWindow,
		SnapshotKeep:  cfg.Session.SnapshotKeep,
	}

	var provider llm.Provider
	if rt.needsLLM() {
		provider, err = llm.NewProviderFromEnv(ctx, rt.events, rt.logger)
		if err != nil {
			return fmt.Errorf("LLM provider: %w", err)
		}
	}

	var catalog question.Catalog
	switch cfg.QuestionSource {
	case config.SourceLLM:
		src := question.NewLLMSource(provider, alphabet, question.DefaultLLMConfig())
		rt.questions, catalog = src, src
	default:
		bank, err := loadBank(cfg.BankFile, alphabet)
		if err != nil {
			return err
		}
		rt.questions, catalog = bank, bank
	}

	switch cfg.Explainer {
	case config.ExplainerLLM:
		rt.explainer = explain.NewLLM(provider, catalog, explain.DefaultConfig())
	default:
		rt.explainer = explain.NewStatic(catalog)
	}

	switch cfg.Evaluator {
	case config.EvaluatorLLM:
		rt.evaluator = evaluation.NewLLMFeedback(provider, evaluation.DefaultFeedbackConfig())
	default:
		rt.evaluator = evaluation.NewLocal()
	}

	return nil
}

func (rt *runtime) needsLLM() bool {
	return rt.cfg.QuestionSource == config.SourceLLM ||
		rt.cfg.Explainer == config.ExplainerLLM ||
		rt.cfg.Evaluator == config.EvaluatorLLM
}

// engine opens the session engine of userID.
func (rt *runtime) engine(ctx context.Context, userID string) (*session.Engine, error) {
	return session.Open(ctx, userID, session.Deps{
		Questions: rt.questions,
		Evaluator: rt.evaluator,
		Explainer: rt.explainer,
		Snapshots: rt.snapshots,
		Events:    rt.events,
		Logger:    rt.logger,
	}, rt.engineCfg)
}

// Close releases storage in reverse order of opening.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func loadBank(path string, alphabet question.Alphabet) (*question.Bank, error) {
	if path == "" {
		return question.DefaultBank(alphabet)
	}
	return question.LoadBankFile(path, alphabet)
}
