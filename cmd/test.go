package cmd

import (
	"context"

	"garden/internal/app"
	"garden/internal/taskgraph"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test [modules...]",
	Short: "Run the tests of modules",
	Long: `Run every test declared by the named modules (or all modules),
deploying the services and running the tasks each test depends on first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, s *app.Session) (taskgraph.Results, error) {
			return s.Test(ctx, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
