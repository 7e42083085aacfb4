package main

import (
	"fmt"

	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/shared/config"
	"github.com/dfryer1193/spacetraveling/shared/filesource"
	"github.com/spf13/cobra"
)

func newImportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import posts/NNN-slug.md files from a local checkout into the SQLite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.requireRecords()
			if err != nil {
				return err
			}

			src, err := filesource.New(args[0])
			if err != nil {
				return err
			}

			importer := application.NewMarkdownImporter(cfg.SiteURL)
			syncService := application.NewSyncService(records, src, importer, a.pages, filesource.Branch)
			defer syncService.Close()

			if err := syncService.SyncAll(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported posts from %s\n", src.GetRepoFullName())
			return nil
		},
	}
}
