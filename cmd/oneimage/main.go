package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags.
var (
	configFile   string
	outputFormat string
	noHeaders    bool
	logLevel     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "oneimage",
	Short: "oneimage - OpenNebula image lifecycle tool",
	Long: `oneimage manages OpenNebula images from declarative YAML descriptors.

Each action converges the remote image towards the descriptor and reports
whether anything changed, so running the same action twice is safe.

Connection settings come from oneimage.yaml, ONEIMAGE_* variables or the
standard ONE_XMLRPC, ONE_AUTH_USER and ONE_AUTH_PASS variables.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./oneimage.yaml or ~/.oneimage/oneimage.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, yaml, json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")

	for _, cmd := range actionCommands() {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(testConnCmd)
}
