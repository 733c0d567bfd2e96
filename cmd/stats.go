package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/prltutor/internal/config"
	"github.com/abhisek/prltutor/internal/level"
	"github.com/abhisek/prltutor/internal/session"
	"github.com/abhisek/prltutor/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats [user-id]",
	Short: "Show a learner's level and accuracy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		userID, err := userArg(cmd, cfg, args)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		rt, err := openStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Printf("Learner: %s\n\n", userID)

		snap, err := rt.snapshots.Latest(ctx, userID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if snap == nil {
			fmt.Println("No saved session.")
		} else {
			state, err := session.FromSnapshot(snap.Data)
			if err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			printState(state, cfg)
		}

		accuracy, err := rt.events.AnswerAccuracy(ctx, userID)
		if err != nil {
			return fmt.Errorf("query accuracy: %w", err)
		}
		fmt.Println()
		fmt.Println("All-time answers by level")
		fmt.Println(strings.Repeat("─", 44))
		fmt.Printf("%-14s  %8s  %8s  %8s\n", "Level", "Answered", "Correct", "Rate")
		fmt.Println(strings.Repeat("─", 44))
		if len(accuracy) == 0 {
			fmt.Println("(none)")
		}
		for _, a := range accuracy {
			st := level.Stats{Answered: a.Answered, Correct: a.Correct}
			fmt.Printf("%-14s  %8d  %8d  %7.0f%%\n", a.Tier, a.Answered, a.Correct, st.Rate()*100)
		}

		events, err := rt.events.QuerySessionEvents(ctx, userID, store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query session events: %w", err)
		}
		if len(events) > 0 {
			fmt.Println()
			fmt.Println("Recent activity")
			fmt.Println(strings.Repeat("─", 60))
			for _, e := range events {
				fmt.Printf("%-19s  %-9s  %-12s  %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.Tier, e.Detail)
			}
		}
		return nil
	},
}

func printState(s session.State, cfg *config.Config) {
	policy := cfg.Session.Policy()
	st := s.Stats()

	fmt.Printf("Session:  %s\n", s.SessionID)
	fmt.Printf("Phase:    %s\n", s.Phase)
	fmt.Printf("Level:    %s (%d/%d at this level, promote at %.0f%%, demote under %.0f%%)\n",
		s.Tier, st.Correct, st.Answered, policy.PromoteAt*100, policy.DemoteBelow*100)
	if s.Role != "" {
		fmt.Printf("Role:     %s\n", s.Role)
	}
	fmt.Printf("Overall:  %d/%d correct\n", s.Totals.Correct, s.Totals.Answered)
	fmt.Printf("Block:    %d/%d answered, %d missed\n", s.Block.Count, cfg.Session.BlockSize, len(s.Block.Failed))
	fmt.Printf("Updated:  %s\n", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

func init() {
	statsCmd.Flags().IntP("limit", "n", 10, "Number of recent session events to show")
}

// userArg returns the explicit user id argument or the local learner.
func userArg(cmd *cobra.Command, cfg *config.Config, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	id, err := learner(cmd, cfg)
	if err != nil {
		return "", fmt.Errorf("resolve learner: %w", err)
	}
	return id, nil
}
