package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd is the base command. Running it without a subcommand behaves like
// "fetch" so the common case stays one word long.
var rootCmd = &cobra.Command{
	Use:   "canvasfetch",
	Short: "Mirror every course file from a Canvas-style portal to local disk",
	Long: `canvasfetch signs into a Canvas-style course portal with a real browser,
walks every course the account can see, and mirrors all instructor-provided
files into a local directory tree matching the portal's folder hierarchy.

Runs are resumable: completed files are skipped, failed ones are retried on
the next invocation, and interrupting a run never corrupts the mirror.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchCmd.RunE(cmd, args)
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .canvasfetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`canvasfetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
