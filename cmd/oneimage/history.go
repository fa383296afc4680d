package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/oneimage/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [image-name]",
	Short: "Show recorded actions",
	Long: `Show actions recorded in the local journal, newest first.

Only actions run with the journal enabled are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		cfg, log, err := loadSettings(false)
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled {
			return fmt.Errorf("the journal is disabled (journal.enabled: false)")
		}

		ctx, stop := commandContext()
		defer stop()

		store, err := openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close journal: %v\n", closeErr)
			}
		}()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		entries, err := store.List(ctx, name, historyLimit)
		if err != nil {
			return err
		}

		out, err := formatter.FormatHistory(entries)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", journal.DefaultLimit, "maximum number of entries")
}
