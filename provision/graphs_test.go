package provision_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/graph"
	"github.com/xraph/stategraph/provision"
)

var testSub = provision.Substitutions{
	SSOLoginURL: "https://example.awsapps.com/start",
}

func TestGraphsLoadAndValidate(t *testing.T) {
	graphs, err := provision.Graphs(testSub)
	if err != nil {
		t.Fatalf("Graphs() = %v", err)
	}

	names := make([]string, 0, len(graphs))
	for _, g := range graphs {
		names = append(names, g.Name)
	}
	want := []string{"provision-account-ad", "provision-account", "validate-account"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("graph names mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphsSubstituteSSOLoginURL(t *testing.T) {
	graphs, err := provision.Graphs(testSub)
	if err != nil {
		t.Fatalf("Graphs() = %v", err)
	}

	for _, g := range graphs {
		if g.Name == "validate-account" {
			continue
		}
		node, ok := g.Node("PrepareCompletion")
		if !ok {
			t.Fatalf("%s: missing PrepareCompletion node", g.Name)
		}
		pass, ok := node.(*graph.PassNode)
		if !ok {
			t.Fatalf("%s: PrepareCompletion is %T, want pass", g.Name, node)
		}

		found := false
		for _, f := range pass.Fields {
			if f.Key == "SSOLoginURL" {
				found = true
				if f.Value != testSub.SSOLoginURL {
					t.Errorf("%s: SSOLoginURL = %v, want %s", g.Name, f.Value, testSub.SSOLoginURL)
				}
			}
		}
		if !found {
			t.Errorf("%s: PrepareCompletion has no SSOLoginURL field", g.Name)
		}
	}
}

func TestGraphsRejectMissingSubstitution(t *testing.T) {
	_, err := provision.Graphs(provision.Substitutions{})
	if err != nil {
		t.Fatalf("Graphs() with empty substitutions = %v", err)
	}

	// An unresolved key in a definition is a load error, not a silent
	// pass-through.
	_, err = graph.Load([]byte("name: ${Missing}\nstartNode: A\n"), nil)
	if !errors.Is(err, stategraph.ErrInvalidGraph) {
		t.Errorf("Load with unresolved substitution = %v, want ErrInvalidGraph", err)
	}
}

func TestRegisterGraphs(t *testing.T) {
	reg := graph.NewRegistry()
	if err := provision.RegisterGraphs(reg, testSub); err != nil {
		t.Fatalf("RegisterGraphs() = %v", err)
	}

	want := []string{"provision-account", "provision-account-ad", "validate-account"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("registered names mismatch (-want +got):\n%s", diff)
	}

	if err := provision.RegisterGraphs(reg, testSub); !errors.Is(err, stategraph.ErrDuplicateGraph) {
		t.Errorf("second RegisterGraphs() = %v, want ErrDuplicateGraph", err)
	}
}

func TestProvisionGraphHandlerRefs(t *testing.T) {
	graphs, err := provision.Graphs(testSub)
	if err != nil {
		t.Fatalf("Graphs() = %v", err)
	}

	known := make(map[string]bool)
	for _, ref := range provision.HandlerRefs() {
		known[ref] = true
	}

	for _, g := range graphs {
		for name, node := range g.Nodes {
			task, ok := node.(*graph.TaskNode)
			if !ok {
				continue
			}
			if !known[task.HandlerRef] {
				t.Errorf("%s node %s references unknown handler %q", g.Name, name, task.HandlerRef)
			}
		}
	}
}
