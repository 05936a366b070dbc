package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chxlky/roadmap-tracker/database"
	"github.com/chxlky/roadmap-tracker/internal/importer"
	"github.com/spf13/cobra"
)

func newImportCmd(configPath *string) *cobra.Command {
	var file, project string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import roadmap spreadsheets into the database",
		Long: "Imports every source listed under importer.sources, or a single file with --file and --project.\n" +
			"Rows are matched on their Jira key, or on their summary when they have none, so re-running an import is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			sources, err := importSources(cfg, file, project)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runImport(ctx, cmd.OutOrStdout(), cfg, sources)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "single workbook to import (.xlsx or .csv)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project the --file rows belong to")
	return cmd
}

// importSources picks the --file source when given, the configured ones
// otherwise.
func importSources(cfg *Config, file, project string) ([]importer.Source, error) {
	if file != "" {
		if project == "" {
			return nil, errors.New("--project is required with --file")
		}
		return []importer.Source{{File: file, Project: project}}, nil
	}
	if len(cfg.Importer.Sources) == 0 {
		return nil, errors.New("nothing to import: pass --file or configure importer.sources")
	}
	return cfg.Importer.Sources, nil
}

func runImport(ctx context.Context, out io.Writer, cfg *Config, sources []importer.Source) error {
	db, err := database.Open(cfg.Database.Path, database.DefaultLogLevel)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	im := importer.New(database.NewStore(db), importer.DefaultRuleset(cfg.Importer.KeyPrefixes))
	im.BaseDir = cfg.Importer.BaseDir
	sum := im.ImportSources(ctx, sources)

	fmt.Fprintf(out, "Imported %d rows (%d created, %d updated, %d duplicates), %d skipped, %d failed\n",
		sum.Imported(), sum.Counts[importer.Created], sum.Counts[importer.Updated], sum.Counts[importer.Duplicate],
		sum.Counts[importer.Skipped], sum.Counts[importer.Failed])
	for _, f := range sum.Failures {
		if f.Row == 0 {
			fmt.Fprintf(out, "  %s: %s\n", f.File, f.Reason)
			continue
		}
		fmt.Fprintf(out, "  %s [%s] row %d: %s\n", f.File, f.Sheet, f.Row, f.Reason)
	}
	return nil
}
