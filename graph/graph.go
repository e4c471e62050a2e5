// Package graph defines the state graph model: the node types an execution
// moves through, load-time validation of a graph's structure, and the YAML
// definition format graphs are authored in.
//
// A Graph is immutable after load. All structural invariants (targets
// resolve, choices have defaults, a terminal node is reachable from every
// node) are enforced by Validate, so the engine never has to handle a
// malformed graph at step time.
package graph

import (
	"fmt"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/policy"
	"github.com/xraph/stategraph/predicate"
)

// Kind identifies a node type.
type Kind string

const (
	KindTask     Kind = "task"
	KindChoice   Kind = "choice"
	KindWait     Kind = "wait"
	KindPass     Kind = "pass"
	KindTerminal Kind = "terminal"
)

// Node is one state in a graph. Concrete types are TaskNode, ChoiceNode,
// WaitNode, PassNode, and TerminalNode.
type Node interface {
	Kind() Kind

	// Targets returns every node name this node can transition to,
	// including choice rules, defaults, and catch targets.
	Targets() []string
}

// ──────────────────────────────────────────────────
// Node types
// ──────────────────────────────────────────────────

// TaskNode invokes an external handler with a copy of the Document and
// merges its result back at ResultPath (the zero Path replaces the whole
// Document). Failures run through Retry and Catch rules in order.
type TaskNode struct {
	HandlerRef    string
	ResultPath    document.Path
	Retry         []policy.RetryRule
	Catch         []policy.CatchRule
	InvokeTimeout time.Duration
	Next          string
}

func (n *TaskNode) Kind() Kind { return KindTask }

func (n *TaskNode) Targets() []string {
	out := []string{n.Next}
	for _, c := range n.Catch {
		out = append(out, c.Next)
	}
	return out
}

// ChoiceRule pairs a predicate with its transition target.
type ChoiceRule struct {
	When predicate.Predicate
	Next string
}

// ChoiceNode routes on the first rule whose predicate is true, in declared
// order, falling back to Default. It never mutates the Document.
type ChoiceNode struct {
	Rules   []ChoiceRule
	Default string
}

func (n *ChoiceNode) Kind() Kind { return KindChoice }

func (n *ChoiceNode) Targets() []string {
	out := make([]string, 0, len(n.Rules)+1)
	for _, r := range n.Rules {
		out = append(out, r.Next)
	}
	return append(out, n.Default)
}

// Pick returns the transition target for the given Document.
func (n *ChoiceNode) Pick(doc *document.Document) string {
	for _, r := range n.Rules {
		if r.When.Eval(doc) {
			return r.Next
		}
	}
	return n.Default
}

// WaitNode suspends the execution for Duration. No goroutine is held while
// the execution is suspended; the store's due index wakes it up.
type WaitNode struct {
	Duration time.Duration
	Next     string
}

func (n *WaitNode) Kind() Kind { return KindWait }

func (n *WaitNode) Targets() []string { return []string{n.Next} }

// Field is one entry of a Pass or Terminal output object: either a literal
// Value or a value read From a payload or metadata path.
type Field struct {
	Key   string
	Value any
	From  *document.Path
}

// resolve computes the field's value. A From path that is absent in its
// source document yields (nil, false) and the field is omitted.
func (f Field) resolve(doc, meta *document.Document) (any, bool) {
	if f.From == nil {
		return f.Value, true
	}
	src := doc
	if f.From.IsMeta() {
		src = meta
	}
	return src.Get(*f.From)
}

// buildObject assembles fields into a result object.
func buildObject(fields []Field, doc, meta *document.Document) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := f.resolve(doc, meta); ok {
			out[f.Key] = v
		}
	}
	return out
}

// PassNode computes an object from its Fields and merges it at ResultPath
// without calling any handler. For a fixed source Document the result is
// the same on every application.
type PassNode struct {
	Fields     []Field
	ResultPath document.Path
	Next       string
}

func (n *PassNode) Kind() Kind { return KindPass }

func (n *PassNode) Targets() []string { return []string{n.Next} }

// Apply merges the node's computed fields into doc at ResultPath.
// meta is the read-only execution metadata for $$ paths.
func (n *PassNode) Apply(doc, meta *document.Document) error {
	return doc.Merge(n.ResultPath, buildObject(n.Fields, doc, meta))
}

// TerminalNode ends the execution as SUCCEEDED. Output fields, when present,
// shape the final output; otherwise the output wraps the accumulated
// Document and the original submission input.
type TerminalNode struct {
	Output []Field
}

func (n *TerminalNode) Kind() Kind { return KindTerminal }

func (n *TerminalNode) Targets() []string { return nil }

// Result computes the execution's final output.
func (n *TerminalNode) Result(doc, meta *document.Document, input map[string]any) map[string]any {
	if len(n.Output) > 0 {
		return buildObject(n.Output, doc, meta)
	}
	return map[string]any{
		"StageInput":    doc.Map(),
		"OriginalInput": input,
	}
}

// ──────────────────────────────────────────────────
// Graph
// ──────────────────────────────────────────────────

// Graph is a named, validated state graph. Treat it as immutable after
// Validate succeeds.
type Graph struct {
	Name      string
	StartNode string
	Timeout   time.Duration
	Nodes     map[string]Node
}

// Node returns the named node.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.Nodes[name]
	return n, ok
}

// Validate checks the graph's structural invariants: the start node exists,
// every transition target resolves, every choice has a default, retry and
// catch rules are well formed, and a terminal node is reachable from every
// node. All errors wrap stategraph.ErrInvalidGraph.
func (g *Graph) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("%w: graph has no name", stategraph.ErrInvalidGraph)
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("%w: graph %q has no timeout", stategraph.ErrInvalidGraph, g.Name)
	}
	if len(g.Nodes) == 0 {
		return fmt.Errorf("%w: graph %q has no nodes", stategraph.ErrInvalidGraph, g.Name)
	}
	if _, ok := g.Nodes[g.StartNode]; !ok {
		return fmt.Errorf("%w: graph %q start node %q does not exist", stategraph.ErrInvalidGraph, g.Name, g.StartNode)
	}

	for name, node := range g.Nodes {
		if err := g.validateNode(name, node); err != nil {
			return err
		}
	}

	return g.validateReachability()
}

func (g *Graph) validateNode(name string, node Node) error {
	for _, target := range node.Targets() {
		if _, ok := g.Nodes[target]; !ok {
			return fmt.Errorf("%w: graph %q node %q targets unknown node %q",
				stategraph.ErrInvalidGraph, g.Name, name, target)
		}
	}

	switch n := node.(type) {
	case *TaskNode:
		if n.HandlerRef == "" {
			return fmt.Errorf("%w: graph %q task %q has no handler", stategraph.ErrInvalidGraph, g.Name, name)
		}
		if n.Next == "" {
			return fmt.Errorf("%w: graph %q task %q has no next node", stategraph.ErrInvalidGraph, g.Name, name)
		}
		for _, r := range n.Retry {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%w: graph %q task %q: %v", stategraph.ErrInvalidGraph, g.Name, name, err)
			}
		}
		for _, c := range n.Catch {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%w: graph %q task %q: %v", stategraph.ErrInvalidGraph, g.Name, name, err)
			}
		}
	case *ChoiceNode:
		if len(n.Rules) == 0 {
			return fmt.Errorf("%w: graph %q choice %q has no rules", stategraph.ErrInvalidGraph, g.Name, name)
		}
		if n.Default == "" {
			return fmt.Errorf("%w: graph %q choice %q has no default", stategraph.ErrInvalidGraph, g.Name, name)
		}
		for i, r := range n.Rules {
			if r.When == nil {
				return fmt.Errorf("%w: graph %q choice %q rule %d has no predicate",
					stategraph.ErrInvalidGraph, g.Name, name, i)
			}
		}
	case *WaitNode:
		if n.Duration <= 0 {
			return fmt.Errorf("%w: graph %q wait %q has no duration", stategraph.ErrInvalidGraph, g.Name, name)
		}
	case *PassNode:
		if n.Next == "" {
			return fmt.Errorf("%w: graph %q pass %q has no next node", stategraph.ErrInvalidGraph, g.Name, name)
		}
	case *TerminalNode:
		// No structural requirements beyond being present.
	default:
		return fmt.Errorf("%w: graph %q node %q has unknown kind", stategraph.ErrInvalidGraph, g.Name, name)
	}
	return nil
}

// validateReachability requires that every node can reach a terminal node.
// Nodes that can reach a terminal are found by walking transitions backwards
// from the terminals.
func (g *Graph) validateReachability() error {
	// Reverse adjacency: target -> sources.
	sources := make(map[string][]string, len(g.Nodes))
	var frontier []string
	for name, node := range g.Nodes {
		if node.Kind() == KindTerminal {
			frontier = append(frontier, name)
		}
		for _, target := range node.Targets() {
			sources[target] = append(sources[target], name)
		}
	}
	if len(frontier) == 0 {
		return fmt.Errorf("%w: graph %q has no terminal node", stategraph.ErrInvalidGraph, g.Name)
	}

	canFinish := make(map[string]bool, len(g.Nodes))
	for len(frontier) > 0 {
		name := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if canFinish[name] {
			continue
		}
		canFinish[name] = true
		frontier = append(frontier, sources[name]...)
	}

	for name := range g.Nodes {
		if !canFinish[name] {
			return fmt.Errorf("%w: graph %q node %q cannot reach a terminal node",
				stategraph.ErrInvalidGraph, g.Name, name)
		}
	}
	return nil
}
