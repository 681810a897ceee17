package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version string injected via ldflags.
func Version() string {
	return appVersion
}

var rootCmd = &cobra.Command{
	Use:   "join",
	Short: "Join - kanban board for tasks and contacts",
	Long: `Join is a kanban board for tasks and contacts kept in a path-addressed
JSON document store (a Firebase Realtime Database or the bundled local store).

Tasks move through four columns: To do, In progress, Await feedback and Done.
Use the board command for an interactive view or the task and contact
commands for scripting.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "join %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
