package main

import (
	"github.com/spf13/cobra"

	"novel-graph-api/internal/application/record"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List importable tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, record.Tables())
		},
	}
}

func newRecordsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect stored records",
	}

	var storyID, storyWorldID string
	var page, pageSize int
	list := &cobra.Command{
		Use:   "list <table>",
		Short: "List records of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			filter := entity.Filter{}
			if storyID != "" {
				filter["story_id"] = storyID
			}
			if storyWorldID != "" {
				filter["story_world_id"] = storyWorldID
			}
			result, err := svc.records.List(cmd.Context(), args[0], record.ListQuery{
				Filter:     filter,
				Pagination: repository.NewPagination(page, pageSize),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	list.Flags().StringVar(&storyID, "story-id", "", "Filter by story ID")
	list.Flags().StringVar(&storyWorldID, "story-world-id", "", "Filter by story world ID")
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "Page size (max 100)")

	get := &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			row, err := svc.records.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, row)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
