package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/stategraph/client"
	"github.com/xraph/stategraph/id"
)

var dlqFlags struct {
	graph string
	limit int
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and resubmit dead letters",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived terminal failures",
	RunE:  runDLQList,
}

var dlqResubmitCmd = &cobra.Command{
	Use:   "resubmit <entry-id>",
	Short: "Start a fresh execution from a dead letter's original input",
	Args:  cobra.ExactArgs(1),
	RunE:  runDLQResubmit,
}

func init() {
	f := dlqListCmd.Flags()
	f.StringVar(&dlqFlags.graph, "graph", "", "Filter by graph name")
	f.IntVar(&dlqFlags.limit, "limit", 20, "Maximum entries to list")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqResubmitCmd)
}

func runDLQList(cmd *cobra.Command, _ []string) error {
	entries, err := client.New(serverURL).ListDeadLetters(cmd.Context(), client.ListDeadLettersOpts{
		GraphName: dlqFlags.graph,
		Limit:     dlqFlags.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No dead letters.")
		return nil
	}
	for _, entry := range entries {
		cause := ""
		if entry.Cause != nil {
			cause = fmt.Sprintf("  %s: %s", entry.Cause.Kind, entry.Cause.Message)
		}
		fmt.Fprintf(out, "%s  %-24s %s%s\n",
			entry.ID, entry.GraphName,
			entry.FailedAt.Format("2006-01-02 15:04:05"), cause)
	}
	return nil
}

func runDLQResubmit(cmd *cobra.Command, args []string) error {
	entryID, err := id.ParseDeadLetterID(args[0])
	if err != nil {
		return fmt.Errorf("parse entry ID: %w", err)
	}

	e, err := client.New(serverURL).ResubmitDeadLetter(cmd.Context(), entryID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resubmitted as %s (%s)\n", e.ID, e.Status)
	return nil
}
