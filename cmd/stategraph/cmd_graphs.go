package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/stategraph/client"
)

var graphsCmd = &cobra.Command{
	Use:   "graphs",
	Short: "List the graphs registered on the server",
	RunE:  runGraphs,
}

func runGraphs(cmd *cobra.Command, _ []string) error {
	names, err := client.New(serverURL).Graphs(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
