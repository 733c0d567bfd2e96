package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prltutor/internal/level"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Work with question banks",
}

var bankValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a YAML question bank (defaults to the built-in bank)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		alphabet, err := cfg.Session.Alphabet()
		if err != nil {
			return err
		}

		path := cfg.BankFile
		if len(args) == 1 {
			path = args[0]
		}
		bank, err := loadBank(path, alphabet)
		if err != nil {
			return err
		}

		name := path
		if name == "" {
			name = "built-in bank"
		}
		fmt.Printf("%s: %d questions, options %s\n", name, bank.Len(), alphabet)
		for _, t := range level.AllTiers() {
			n := bank.Count(t)
			warn := ""
			if n < cfg.Session.BlockSize {
				warn = "  (fewer than one block, repeats will be frequent)"
			}
			fmt.Printf("  %-14s %4d%s\n", t, n, warn)
		}
		return nil
	},
}

func init() {
	bankCmd.AddCommand(bankValidateCmd)
}
