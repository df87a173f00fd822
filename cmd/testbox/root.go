// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

const (
	verboseFlag = "verbose"
	configFlag  = "config"
	engineFlag  = "engine"
)

// NewRootCommand builds the testbox command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "testbox",
		Short: "Run Rust tests in a cached container environment",
		Long: TitleStyle.Render("testbox") + SubtitleStyle.Render(" - Run Rust tests in a cached container environment") + `

testbox builds a container image from the project's Dockerfile.test, keys it
by the file's content and the Rust version, and reuses it for as long as the
definition does not change. Tests run with the project, a per-project
artifact directory and a per-version registry cache mounted.

` + SubtitleStyle.Render("Examples:") + `
  testbox run                               Run cargo test
  testbox run --rust-version 1.78           Run against a specific toolchain
  testbox run --clean -- --nocapture        Purge caches, then run
  testbox watch                             Re-run the tests on every change
  testbox status                            Show the cached environment
  testbox clean --rust-version 1.78         Remove cached state of a version`,
		SilenceUsage: true,
	}

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, verboseFlag, "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, configFlag, "", "config file (default is $XDG_CONFIG_HOME/testbox/config.cue)")
	rootCmd.PersistentFlags().StringVar(&app.flags.engine, engineFlag, "", "container engine to use (docker or podman)")

	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newCleanCommand(app))
	rootCmd.AddCommand(newWatchCommand(app))
	rootCmd.AddCommand(newStatusCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs testbox with the process arguments and returns its exit code.
// This is called by main.main().
func Execute() int {
	return ExecuteArgs(context.Background(), os.Args[1:], Dependencies{})
}

// ExecuteArgs runs the command tree with explicit arguments and
// dependencies and returns the exit code.
func ExecuteArgs(ctx context.Context, args []string, deps Dependencies) int {
	app := NewApp(deps)
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err != nil && app.verbose {
		fmt.Fprintln(app.stderr, VerboseStyle.Render(formatErrorForDisplay(err, true)))
		renderIssue(app.stderr, err)
	}
	return exitCodeFor(err)
}

// splitGlobalFlags separates leading global flags from the arguments of a
// command that does its own argument parsing. Scanning stops at the first
// token that is not a global flag.
func splitGlobalFlags(args []string) (globals, rest []string) {
	i := 0
	for i < len(args) {
		arg := args[i]
		switch {
		case arg == "-v" || arg == "--"+verboseFlag || strings.HasPrefix(arg, "--"+verboseFlag+"="):
			i++
		case arg == "--"+configFlag || arg == "--"+engineFlag:
			if i+1 >= len(args) {
				return args[:i+1], nil
			}
			i += 2
		case strings.HasPrefix(arg, "--"+configFlag+"=") || strings.HasPrefix(arg, "--"+engineFlag+"="):
			i++
		default:
			return args[:i], args[i:]
		}
	}
	return args, nil
}
