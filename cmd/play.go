package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/app"
	"github.com/abhisek/prltutor/internal/logging"
	"github.com/abhisek/prltutor/internal/store"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start or continue an assessment in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

// runPlay opens the learner's engine and launches the terminal client.
func runPlay(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dataDir, err := store.DataDir()
	if err != nil {
		return err
	}
	logger, err := logging.ForTUI(cfg, filepath.Join(dataDir, "prltutor.log"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	userID, err := learner(cmd, cfg)
	if err != nil {
		return fmt.Errorf("resolve learner: %w", err)
	}

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := rt.engine(ctx, userID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	logger.Info("terminal session started", zap.String("user_id", userID))
	return app.Run(ctx, app.Options{
		Engine: engine,
		Policy: rt.engineCfg.Policy,
		Logger: logger,
	})
}
