package cmd

import (
	"context"
	"os"

	"garden/internal/app"
	"garden/internal/cli"
	"garden/internal/graph"

	"github.com/spf13/cobra"
)

var (
	flagScanKind    string
	flagScanBatches bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show the resolved entity graph",
	Long: `Resolve the project configuration into its entity graph and print
it: every module, build, service, task and test with its dependencies.
With --batches the graph is printed as topological levels instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		session, err := app.NewSession(ctx, sessionOptions())
		if err != nil {
			return err
		}
		defer session.Close(context.Background())

		if flagScanBatches {
			batches, err := session.Graph.TopologicalBatches()
			if err != nil {
				return err
			}
			cli.RenderBatchTable(os.Stdout, batches)
			return nil
		}

		var kinds []graph.Kind
		if flagScanKind != "" {
			kind, err := graph.ParseKind(flagScanKind)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
		}
		cli.RenderEntityTable(os.Stdout, session.Graph.Entities(kinds...))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&flagScanKind, "kind", "", "only show entities of this kind (module, build, service, task, test)")
	scanCmd.Flags().BoolVar(&flagScanBatches, "batches", false, "print topological execution levels instead of the entity list")
	rootCmd.AddCommand(scanCmd)
}
