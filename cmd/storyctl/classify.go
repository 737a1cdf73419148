package main

import (
	"github.com/spf13/cobra"

	"novel-graph-api/internal/application/storyimport"
)

type classification struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Print the entity kind of each record in a file without importing",
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
			out := make([]classification, 0, len(records))
			for i, r := range records {
				out = append(out, classification{Index: i, Kind: string(storyimport.ClassifyEntity(r))})
			}
			return printJSON(cmd, out)
		},
	}
}
