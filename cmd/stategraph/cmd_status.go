package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/stategraph/client"
	"github.com/xraph/stategraph/id"
)

var statusFlags struct {
	history bool
	output  bool
}

var statusCmd = &cobra.Command{
	Use:   "status <execution-id>",
	Short: "Show the state of an execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.BoolVar(&statusFlags.history, "history", false, "Include the step transition history")
	f.BoolVar(&statusFlags.output, "output", false, "Include the final output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	execID, err := id.ParseExecutionID(args[0])
	if err != nil {
		return fmt.Errorf("parse execution ID: %w", err)
	}

	c := client.New(serverURL)
	ctx := cmd.Context()

	e, err := c.Execution(ctx, execID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Execution: %s\n", e.ID)
	fmt.Fprintf(out, "Graph:     %s\n", e.GraphName)
	fmt.Fprintf(out, "Status:    %s\n", e.Status)
	fmt.Fprintf(out, "Node:      %s\n", e.CurrentNode)
	fmt.Fprintf(out, "Started:   %s\n", e.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if !e.CompletedAt.IsZero() {
		fmt.Fprintf(out, "Completed: %s\n", e.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if e.Failure != nil {
		fmt.Fprintf(out, "Failure:   %s: %s\n", e.Failure.Kind, e.Failure.Message)
	}

	if statusFlags.output && e.Output != nil {
		data, err := json.MarshalIndent(e.Output, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintf(out, "Output:\n%s\n", data)
	}

	if statusFlags.history {
		entries, err := c.History(ctx, execID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "History: (%d steps)\n", len(entries))
		for _, h := range entries {
			line := fmt.Sprintf("  %3d %-16s %s", h.Seq, h.Transition, h.Node)
			if h.Detail != "" {
				line += ": " + h.Detail
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
