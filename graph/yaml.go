package graph

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/policy"
	"github.com/xraph/stategraph/predicate"
)

// Load parses a YAML graph definition, applies substitutions, and validates
// the result. Substitution keys appear in definitions as ${Key} and are
// replaced textually before parsing, so they can stand in for any scalar.
func Load(data []byte, substitutions map[string]string) (*Graph, error) {
	text := string(data)
	for key, value := range substitutions {
		text = strings.ReplaceAll(text, "${"+key+"}", value)
	}
	if i := strings.Index(text, "${"); i >= 0 {
		end := strings.IndexByte(text[i:], '}')
		if end < 0 {
			end = len(text) - i
		}
		return nil, fmt.Errorf("%w: unresolved substitution %q",
			stategraph.ErrInvalidGraph, text[i:i+end+1])
	}

	var spec graphSpec
	if err := yaml.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("graph: parse definition: %w", err)
	}

	g, err := spec.build()
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// ──────────────────────────────────────────────────
// Definition format
// ──────────────────────────────────────────────────

type graphSpec struct {
	Name           string              `yaml:"name"`
	StartNode      string              `yaml:"startNode"`
	TimeoutMinutes int                 `yaml:"timeoutMinutes"`
	Nodes          map[string]nodeSpec `yaml:"nodes"`
}

type nodeSpec struct {
	Type string `yaml:"type"`

	// task
	Handler        string      `yaml:"handler"`
	ResultPath     string      `yaml:"resultPath"`
	TimeoutSeconds int         `yaml:"timeoutSeconds"`
	Retry          []retrySpec `yaml:"retry"`
	Catch          []catchSpec `yaml:"catch"`

	// choice
	Rules   []ruleSpec `yaml:"rules"`
	Default string     `yaml:"default"`

	// wait
	DurationSeconds int `yaml:"durationSeconds"`

	// pass, terminal
	Fields []fieldSpec `yaml:"fields"`
	Output []fieldSpec `yaml:"output"`

	Next string `yaml:"next"`
}

type retrySpec struct {
	ErrorKinds      []string `yaml:"errorKinds"`
	IntervalSeconds int      `yaml:"intervalSeconds"`
	MaxAttempts     int      `yaml:"maxAttempts"`
	BackoffRate     float64  `yaml:"backoffRate"`
}

type catchSpec struct {
	ErrorKinds []string `yaml:"errorKinds"`
	Next       string   `yaml:"next"`
}

type ruleSpec struct {
	When predicateSpec `yaml:"when"`
	Next string        `yaml:"next"`
}

type fieldSpec struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
	From  string `yaml:"from"`
}

type presenceSpec struct {
	Path     string `yaml:"path"`
	Expected bool   `yaml:"expected"`
}

type stringEqualsSpec struct {
	Path  string `yaml:"path"`
	Value string `yaml:"value"`
}

type booleanEqualsSpec struct {
	Path  string `yaml:"path"`
	Value bool   `yaml:"value"`
}

// predicateSpec is a tagged union; exactly one field must be set.
type predicateSpec struct {
	IsPresent     *presenceSpec      `yaml:"isPresent"`
	IsNull        *presenceSpec      `yaml:"isNull"`
	StringEquals  *stringEqualsSpec  `yaml:"stringEquals"`
	BooleanEquals *booleanEqualsSpec `yaml:"booleanEquals"`
	And           []predicateSpec    `yaml:"and"`
	Or            []predicateSpec    `yaml:"or"`
}

// ──────────────────────────────────────────────────
// Spec -> model
// ──────────────────────────────────────────────────

func (s graphSpec) build() (*Graph, error) {
	g := &Graph{
		Name:      s.Name,
		StartNode: s.StartNode,
		Timeout:   time.Duration(s.TimeoutMinutes) * time.Minute,
		Nodes:     make(map[string]Node, len(s.Nodes)),
	}
	for name, ns := range s.Nodes {
		node, err := ns.build(s.Name, name)
		if err != nil {
			return nil, err
		}
		g.Nodes[name] = node
	}
	return g, nil
}

func (s nodeSpec) build(graphName, nodeName string) (Node, error) {
	fail := func(err error) (Node, error) {
		return nil, fmt.Errorf("graph %q node %q: %w", graphName, nodeName, err)
	}

	switch Kind(s.Type) {
	case KindTask:
		resultPath, err := parseOptionalPath(s.ResultPath)
		if err != nil {
			return fail(err)
		}
		n := &TaskNode{
			HandlerRef:    s.Handler,
			ResultPath:    resultPath,
			InvokeTimeout: time.Duration(s.TimeoutSeconds) * time.Second,
			Next:          s.Next,
		}
		for _, r := range s.Retry {
			n.Retry = append(n.Retry, policy.RetryRule{
				ErrorKinds:  kinds(r.ErrorKinds),
				Interval:    time.Duration(r.IntervalSeconds) * time.Second,
				MaxAttempts: r.MaxAttempts,
				BackoffRate: r.BackoffRate,
			})
		}
		for _, c := range s.Catch {
			n.Catch = append(n.Catch, policy.CatchRule{
				ErrorKinds: kinds(c.ErrorKinds),
				Next:       c.Next,
			})
		}
		return n, nil

	case KindChoice:
		n := &ChoiceNode{Default: s.Default}
		for i, r := range s.Rules {
			pred, err := r.When.build()
			if err != nil {
				return fail(fmt.Errorf("rule %d: %w", i, err))
			}
			n.Rules = append(n.Rules, ChoiceRule{When: pred, Next: r.Next})
		}
		return n, nil

	case KindWait:
		return &WaitNode{
			Duration: time.Duration(s.DurationSeconds) * time.Second,
			Next:     s.Next,
		}, nil

	case KindPass:
		resultPath, err := parseOptionalPath(s.ResultPath)
		if err != nil {
			return fail(err)
		}
		fields, err := buildFields(s.Fields)
		if err != nil {
			return fail(err)
		}
		return &PassNode{Fields: fields, ResultPath: resultPath, Next: s.Next}, nil

	case KindTerminal:
		output, err := buildFields(s.Output)
		if err != nil {
			return fail(err)
		}
		return &TerminalNode{Output: output}, nil

	default:
		return fail(fmt.Errorf("%w: unknown node type %q", stategraph.ErrInvalidGraph, s.Type))
	}
}

func (s predicateSpec) build() (predicate.Predicate, error) {
	set := 0
	for _, present := range []bool{
		s.IsPresent != nil, s.IsNull != nil, s.StringEquals != nil,
		s.BooleanEquals != nil, len(s.And) > 0, len(s.Or) > 0,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: predicate must have exactly one condition, got %d",
			stategraph.ErrInvalidGraph, set)
	}

	switch {
	case s.IsPresent != nil:
		p, err := parsePredicatePath(s.IsPresent.Path)
		if err != nil {
			return nil, err
		}
		return predicate.IsPresent{Path: p, Expected: s.IsPresent.Expected}, nil
	case s.IsNull != nil:
		p, err := parsePredicatePath(s.IsNull.Path)
		if err != nil {
			return nil, err
		}
		return predicate.IsNull{Path: p, Expected: s.IsNull.Expected}, nil
	case s.StringEquals != nil:
		p, err := parsePredicatePath(s.StringEquals.Path)
		if err != nil {
			return nil, err
		}
		return predicate.StringEquals{Path: p, Value: s.StringEquals.Value}, nil
	case s.BooleanEquals != nil:
		p, err := parsePredicatePath(s.BooleanEquals.Path)
		if err != nil {
			return nil, err
		}
		return predicate.BooleanEquals{Path: p, Value: s.BooleanEquals.Value}, nil
	case len(s.And) > 0:
		children, err := buildPredicates(s.And)
		if err != nil {
			return nil, err
		}
		return predicate.And{Predicates: children}, nil
	default:
		children, err := buildPredicates(s.Or)
		if err != nil {
			return nil, err
		}
		return predicate.Or{Predicates: children}, nil
	}
}

func buildPredicates(specs []predicateSpec) ([]predicate.Predicate, error) {
	out := make([]predicate.Predicate, 0, len(specs))
	for _, s := range specs {
		p, err := s.build()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func buildFields(specs []fieldSpec) ([]Field, error) {
	out := make([]Field, 0, len(specs))
	for _, s := range specs {
		f := Field{Key: s.Key, Value: s.Value}
		if s.From != "" {
			p, err := document.ParsePath(s.From)
			if err != nil {
				return nil, err
			}
			f.From = &p
			f.Value = nil
		}
		out = append(out, f)
	}
	return out, nil
}

// parsePredicatePath parses a Choice predicate path. Predicates evaluate
// the payload only; a metadata-rooted path ($$...) would silently walk
// payload keys at evaluation time, so it is rejected here at load time.
func parsePredicatePath(s string) (document.Path, error) {
	p, err := document.ParsePath(s)
	if err != nil {
		return document.Path{}, err
	}
	if p.IsMeta() {
		return document.Path{}, fmt.Errorf("%w: predicate path %q: metadata paths are not allowed in choice rules",
			stategraph.ErrInvalidGraph, s)
	}
	return p, nil
}

// parseOptionalPath treats an empty string as the payload root.
func parseOptionalPath(s string) (document.Path, error) {
	if s == "" {
		return document.Root, nil
	}
	return document.ParsePath(s)
}

func kinds(raw []string) []policy.Kind {
	out := make([]policy.Kind, 0, len(raw))
	for _, r := range raw {
		out = append(out, policy.Kind(r))
	}
	return out
}
