package main

import (
	"github.com/spf13/cobra"

	"novel-graph-api/internal/domain/entity"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema for every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"migrated": len(entity.Tables())})
		},
	}
}
