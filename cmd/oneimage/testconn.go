package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test the OpenNebula connection",
	Long:  `Connect to OpenNebula and display the server version and the capabilities resolved from it.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Testing OpenNebula connection...")

		ctx, stop := commandContext()
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		defer a.close()

		caps := a.ctrl.Capabilities()
		fmt.Fprintf(w, "✓ Connected to %s\n", a.ctrl.DriverURL())
		fmt.Fprintf(w, "✓ OpenNebula version: %s\n", caps.Version)
		if caps.DiskSaveAs {
			fmt.Fprintln(w, "✓ Snapshots use disk save-as")
		} else {
			fmt.Fprintln(w, "✓ Snapshots use the legacy save-disk call")
		}

		fmt.Fprintln(w, "\nConnection test successful!")
		return nil
	},
}
