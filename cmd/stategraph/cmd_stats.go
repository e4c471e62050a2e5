package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/stategraph/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution and dead letter totals",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	s, err := client.New(serverURL).Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running:      %d\n", s.Executions.Running)
	fmt.Fprintf(out, "Succeeded:    %d\n", s.Executions.Succeeded)
	fmt.Fprintf(out, "Failed:       %d\n", s.Executions.Failed)
	fmt.Fprintf(out, "Timed out:    %d\n", s.Executions.TimedOut)
	fmt.Fprintf(out, "Dead letters: %d\n", s.DeadLetterCount)
	return nil
}
