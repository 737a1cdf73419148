package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"novel-graph-api/internal/application/storyimport"
)

func newImportCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import story bundles or loose entity records",
	}
	cmd.AddCommand(newImportStoryCmd(opts), newImportEntitiesCmd(opts))
	return cmd
}

func newImportStoryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "story <file>",
		Short: "Import an analyzed story bundle (JSON or YAML, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			bundle, err := storyimport.DecodeBundle(data)
			if err != nil {
				return err
			}

			svc, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result := svc.importer.ImportAnalyzedStory(cmd.Context(), bundle)
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("import failed: %s", result.Error)
			}
			return nil
		},
	}
}

func newImportEntitiesCmd(opts *globalOptions) *cobra.Command {
	var storyID, storyWorldID string

	cmd := &cobra.Command{
		Use:   "entities <file>",
		Short: "Import loose entity records, classifying each one (JSON or YAML, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			records, err := storyimport.DecodeRecords(data)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("no records to import")
			}

			svc, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.importer.ImportEntities(cmd.Context(), records, storyID, storyWorldID)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&storyID, "story-id", "", "Default story ID for records without one")
	cmd.Flags().StringVar(&storyWorldID, "story-world-id", "", "Default story world ID for records without one")
	return cmd
}
