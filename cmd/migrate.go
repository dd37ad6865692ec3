package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"garden/internal/migrate"
	"garden/internal/vcs"
	"garden/pkg/logging"

	"github.com/spf13/cobra"
)

var flagMigrateWrite bool

var migrateCmd = &cobra.Command{
	Use:   "migrate [files...]",
	Short: "Rewrite legacy configuration files to the current schema",
	Long: `Rewrite garden.yml files written in the legacy syntax (wrapped
project:/module: documents, the "generic" module type, the
environmentDefaults block) into the current schema.

Without arguments all configuration files of the project are migrated.
Rewritten content is printed to stdout; with --write files are updated in
place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		files := args
		if len(files) == 0 {
			root := flagRoot
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				root, err = vcs.FindProjectRoot(cwd)
				if err != nil {
					return err
				}
			}
			rels, err := vcs.NewScanner().ConfigFiles(ctx, root)
			if err != nil {
				return err
			}
			for _, rel := range rels {
				files = append(files, filepath.Join(root, rel))
			}
		}

		changedCount := 0
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			migrated, changed, err := migrate.Migrate(data)
			if err != nil {
				return fmt.Errorf("failed to migrate %s: %w", path, err)
			}
			if !changed {
				logging.Debug("Migrate", "%s already uses the current schema", path)
				continue
			}
			changedCount++

			if flagMigrateWrite {
				if err := os.WriteFile(path, migrated, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, migrated)
			}
		}

		if changedCount == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "all configuration files already use the current schema")
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVarP(&flagMigrateWrite, "write", "w", false, "rewrite files in place instead of printing")
	rootCmd.AddCommand(migrateCmd)
}
