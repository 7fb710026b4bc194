package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/upstream-pm/upstream/internal/importer"
)

func newImportCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		author     uint
	)

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import milestones from a legacy rowset file",
		Long: `Reads a YAML or JSON list of legacy milestone rows and creates one milestone
per row in the given project. Rows that fail validation, or whose id was
already imported, are skipped and reported. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, configPath, args[0], projectID, author)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVarP(&projectID, "project", "p", 0, "target project id (required)")
	cmd.Flags().UintVar(&author, "author", 0, "author for rows without created_by (required)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("author")
	return cmd
}

func runImport(cmd *cobra.Command, configPath, path string, projectID, author uint) error {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	rows, err := importer.Decode(in)
	if err != nil {
		return err
	}

	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := importer.New(a.store, a.mgr, a.logger).Import(cmd.Context(), projectID, author, rows)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d of %d rows into project %d\n", len(res.Imported), len(rows), projectID)
	for _, skipped := range res.Skipped {
		fmt.Fprintf(out, "  skipped %v\n", skipped)
	}
	return nil
}
