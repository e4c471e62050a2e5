package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/stategraph/client"
	"github.com/xraph/stategraph/provision"
)

var submitFlags struct {
	graph       string
	accountName string
	email       string
	supportDL   string
	orgUnit     string
	tags        []string
	adPairs     []string
	inputFile   string
	wait        bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a provisioning execution",
	Long: `Submits an execution to a running server. Account flags build the
provisioning input; --ad-pair switches to the AD variant unless --graph
overrides it. Alternatively --input-file submits a raw JSON input to any
registered graph.`,
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.graph, "graph", "", "Graph name (default derived from flags)")
	f.StringVar(&submitFlags.accountName, "account-name", "", "Account name")
	f.StringVar(&submitFlags.email, "account-email", "", "Account root email")
	f.StringVar(&submitFlags.supportDL, "support-dl", "", "Support distribution list")
	f.StringVar(&submitFlags.orgUnit, "ou", "", "Managed organizational unit")
	f.StringSliceVar(&submitFlags.tags, "tag", nil, "Additional account tag as key=value (repeatable)")
	f.StringSliceVar(&submitFlags.adPairs, "ad-pair", nil, "AD integration as permission-set=group (repeatable)")
	f.StringVar(&submitFlags.inputFile, "input-file", "", "Raw JSON input file (requires --graph)")
	f.BoolVar(&submitFlags.wait, "wait", false, "Poll until the execution reaches a terminal status")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	graphName, input, err := buildSubmission()
	if err != nil {
		return err
	}

	c := client.New(serverURL)
	ctx := cmd.Context()

	e, err := c.Submit(ctx, graphName, input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Execution: %s\n", e.ID)
	fmt.Fprintf(out, "Graph:     %s\n", e.GraphName)
	fmt.Fprintf(out, "Status:    %s\n", e.Status)

	if !submitFlags.wait {
		return nil
	}

	e, err = c.WaitForTerminal(ctx, e.ID, 2*time.Second)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Final:     %s\n", e.Status)
	if e.Failure != nil {
		fmt.Fprintf(out, "Failure:   %s: %s\n", e.Failure.Kind, e.Failure.Message)
	}
	return nil
}

func buildSubmission() (string, map[string]any, error) {
	if submitFlags.inputFile != "" {
		if submitFlags.graph == "" {
			return "", nil, fmt.Errorf("--input-file requires --graph")
		}
		data, err := os.ReadFile(submitFlags.inputFile)
		if err != nil {
			return "", nil, fmt.Errorf("read input file: %w", err)
		}
		var input map[string]any
		if err := json.Unmarshal(data, &input); err != nil {
			return "", nil, fmt.Errorf("parse input file: %w", err)
		}
		return submitFlags.graph, input, nil
	}

	info := provision.AccountInfo{
		AccountName:               submitFlags.accountName,
		AccountEmail:              submitFlags.email,
		SupportDL:                 submitFlags.supportDL,
		ManagedOrganizationalUnit: submitFlags.orgUnit,
	}
	for _, raw := range submitFlags.tags {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return "", nil, fmt.Errorf("bad --tag %q, want key=value", raw)
		}
		info.AccountTags = append(info.AccountTags, provision.Tag{Key: key, Value: value})
	}
	for _, raw := range submitFlags.adPairs {
		ps, group, ok := strings.Cut(raw, "=")
		if !ok {
			return "", nil, fmt.Errorf("bad --ad-pair %q, want permission-set=group", raw)
		}
		info.ADIntegration = append(info.ADIntegration, provision.ADIntegrationPair{
			PermissionSetName:        ps,
			ActiveDirectoryGroupName: group,
		})
	}

	input, err := info.Input()
	if err != nil {
		return "", nil, err
	}

	graphName := submitFlags.graph
	if graphName == "" {
		graphName = "provision-account"
		if len(info.ADIntegration) > 0 {
			graphName = "provision-account-ad"
		}
	}
	return graphName, input, nil
}
