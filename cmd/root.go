package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/prltutor/internal/config"
	"github.com/abhisek/prltutor/internal/identity"
	"github.com/abhisek/prltutor/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "prltutor",
	Short: "Adaptive workplace safety tutor",
	Long: "prltutor: an adaptive multiple-choice tutor for occupational risk prevention.\n" +
		"It adjusts the level to your answers and explains what you missed.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PRLTUTOR_DB)")
	rootCmd.PersistentFlags().String("user", "", "Learner id (overrides PRLTUTOR_USER and the OS user)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(telegramCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB = p
	}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		cfg.User = u
	}
	return cfg, nil
}

// resolveDBPath returns the database path: --db or PRLTUTOR_DB first, then
// the default XDG path.
func resolveDBPath(cfg *config.Config) (string, error) {
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}

// learner resolves the id of the local learner.
func learner(cmd *cobra.Command, cfg *config.Config) (string, error) {
	ids := identity.Chain{identity.Static(cfg.User), identity.NewOSUser()}
	return ids.UserID(cmd.Context())
}
