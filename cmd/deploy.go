package cmd

import (
	"context"

	"garden/internal/app"
	"garden/internal/taskgraph"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [services...]",
	Short: "Deploy services and everything they require",
	Long: `Deploy the named services (or all services). Each deploy first
builds the owning module and brings up the services and tasks the service
depends on, in dependency order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, s *app.Session) (taskgraph.Results, error) {
			return s.Deploy(ctx, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
