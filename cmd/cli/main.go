package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reportengine/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "reportctl - report engine control CLI",
	Long: `reportctl talks to a running report engine over its HTTP API.
It can trigger report executions, inspect their progress, manage the
cron schedule set and check engine health.

The API endpoint is taken from REPORTENGINE_API_URL (default
http://localhost:8080); REPORTENGINE_USER, when set, is recorded as the
executor of triggered runs.`,
}

func init() {
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewScheduleCommand())
	rootCmd.AddCommand(commands.NewHealthCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
