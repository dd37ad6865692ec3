package cmd

import (
	"context"

	"garden/internal/app"
	"garden/internal/taskgraph"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [modules...]",
	Short: "Build modules and their build dependencies",
	Long: `Build the named modules (or all modules) after building everything
they depend on. Unchanged modules are served from the build cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, s *app.Session) (taskgraph.Results, error) {
			return s.Build(ctx, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
