package provision

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/xraph/stategraph/graph"
)

//go:embed definitions/*.yaml
var definitionsFS embed.FS

// Substitutions are the deployment-specific values the shipped definitions
// reference as ${Key}.
type Substitutions struct {
	// SSOLoginURL is the SSO portal URL included in completion output.
	SSOLoginURL string
}

func (s Substitutions) values() map[string]string {
	return map[string]string{
		"SSOLoginURL": s.SSOLoginURL,
	}
}

// Graphs loads every shipped definition with the given substitutions
// applied, sorted by file name.
func Graphs(sub Substitutions) ([]*graph.Graph, error) {
	files, err := fs.Glob(definitionsFS, "definitions/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("provision: list definitions: %w", err)
	}
	sort.Strings(files)

	out := make([]*graph.Graph, 0, len(files))
	for _, file := range files {
		data, err := definitionsFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("provision: read %s: %w", file, err)
		}
		g, err := graph.Load(data, sub.values())
		if err != nil {
			return nil, fmt.Errorf("provision: load %s: %w", file, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// RegisterGraphs loads the shipped definitions and registers them all.
func RegisterGraphs(reg *graph.Registry, sub Substitutions) error {
	graphs, err := Graphs(sub)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
