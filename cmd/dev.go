package cmd

import (
	"context"
	"errors"
	"os"

	"garden/internal/app"
	"garden/internal/cli"
	"garden/internal/taskgraph"

	"github.com/spf13/cobra"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Deploy everything and keep it converged",
	Long: `Deploy all services, then watch the configuration and module
directories. Any change rebuilds the dependency graph from scratch and
redeploys what changed. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		session, err := app.NewSession(ctx, sessionOptions())
		if err != nil {
			return err
		}
		defer session.Close(context.Background())

		progress := cli.NewProgress(os.Stderr, flagQuiet)
		progress.Start(session.Bus)
		defer progress.Stop()

		err = session.Dev(ctx, func(results taskgraph.Results) {
			progress.Stop()
			cli.RenderResultsTable(os.Stdout, results)
			progress.Start(session.Bus)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(devCmd)
}
