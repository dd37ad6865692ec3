package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"garden/internal/app"
	"garden/internal/cli"
	"garden/internal/taskgraph"
	"garden/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	flagRoot        string
	flagLogLevel    string
	flagConcurrency int
	flagEnv         string
	flagQuiet       bool
	flagNoTelemetry bool
)

// rootCmd is the base command for the garden CLI.
var rootCmd = &cobra.Command{
	Use:   "garden",
	Short: "Orchestrate your development environment",
	Long: `garden turns declarative module configuration (builds, services,
tasks, tests and their dependencies) into a dependency graph and drives
build, deploy, test and run operations against it: minimal correct order,
bounded concurrency, no duplicate work, and per-item progress reporting.`,
	// SilenceUsage prevents cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logging.ParseLevel(flagLogLevel)
		logging.InitForCLI(level, os.Stderr)
		if err != nil {
			logging.Warn("CLI", "%v, using info", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&flagConcurrency, "concurrency", 0, "maximum concurrently processing work items (0 = engine default)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "environment to operate in (default: the project's default environment)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress the progress spinner")
	rootCmd.PersistentFlags().BoolVar(&flagNoTelemetry, "no-telemetry", false, "disable anonymized usage reporting")
}

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sessionOptions() app.Options {
	return app.Options{
		Root:        flagRoot,
		Environment: flagEnv,
		Concurrency: flagConcurrency,
		Version:     GetVersion(),
		Telemetry:   !flagNoTelemetry,
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so an
// interrupted run aborts pending work items cooperatively.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runBatch is the shared skeleton of the batch commands: bootstrap a
// session, attach the progress reporter, run the operation, render the
// outcome of every root, and fail the command if any root did not
// complete.
func runBatch(cmd *cobra.Command, op func(context.Context, *app.Session) (taskgraph.Results, error)) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	session, err := app.NewSession(ctx, sessionOptions())
	if err != nil {
		return err
	}
	defer session.Close(context.Background())

	progress := cli.NewProgress(os.Stderr, flagQuiet)
	progress.Start(session.Bus)

	results, err := op(ctx, session)
	progress.Stop()
	if err != nil {
		return err
	}

	cli.RenderResultsTable(os.Stdout, results)
	if results.Failed() {
		return fmt.Errorf("one or more work items did not complete")
	}
	return nil
}
