package cmd

import (
	"context"

	"garden/internal/app"
	"garden/internal/taskgraph"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task to completion",
	Long: `Run the named task, building its module and satisfying its service
and task dependencies first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, s *app.Session) (taskgraph.Results, error) {
			return s.RunTask(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
