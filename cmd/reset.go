package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prltutor/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset [user-id]",
	Short: "End a learner's session and delete their saved progress",
	Long: "Deletes every saved snapshot of the learner, so the next session starts\n" +
		"from the greeting. Answer and session events are kept for statistics.",
	Args: cobra.MaximumNArgs(1),
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

		rt, err := openStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.snapshots.Delete(ctx, userID); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		if err := rt.events.AppendSessionEvent(ctx, store.SessionEventData{
			UserID: userID,
			Action: "logout",
			Detail: "reset from CLI",
		}); err != nil {
			return fmt.Errorf("record reset: %w", err)
		}

		fmt.Printf("Progress of %s has been reset.\n", userID)
		return nil
	},
}
