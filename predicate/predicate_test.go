package predicate_test

import (
	"testing"

	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/predicate"
)

func testDoc() *document.Document {
	return document.FromMap(map[string]any{
		"CheckForRunningProcesses": map[string]any{
			"CodeBuild": "arn:something",
		},
		"AccountStatus": map[string]any{
			"Wait":   true,
			"Status": "IN_PROGRESS",
			"Reason": nil,
		},
	})
}

func TestIsPresent(t *testing.T) {
	doc := testDoc()

	tests := []struct {
		name string
		p    predicate.Predicate
		want bool
	}{
		{"present key", predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodeBuild"), Expected: true}, true},
		{"absent key", predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodePipeline"), Expected: true}, false},
		{"absent key inverted", predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodePipeline"), Expected: false}, true},
		{"null is present", predicate.IsPresent{Path: document.MustPath("$.AccountStatus.Reason"), Expected: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Eval(doc); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	doc := testDoc()

	tests := []struct {
		name string
		p    predicate.Predicate
		want bool
	}{
		{"null value", predicate.IsNull{Path: document.MustPath("$.AccountStatus.Reason"), Expected: true}, true},
		{"non-null value", predicate.IsNull{Path: document.MustPath("$.AccountStatus.Status"), Expected: true}, false},
		{"non-null inverted", predicate.IsNull{Path: document.MustPath("$.AccountStatus.Status"), Expected: false}, true},
		{"absent is not null", predicate.IsNull{Path: document.MustPath("$.AccountStatus.Missing"), Expected: true}, false},
		{"absent is not non-null either", predicate.IsNull{Path: document.MustPath("$.AccountStatus.Missing"), Expected: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Eval(doc); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStringEquals(t *testing.T) {
	doc := testDoc()

	tests := []struct {
		name string
		p    predicate.Predicate
		want bool
	}{
		{"match", predicate.StringEquals{Path: document.MustPath("$.AccountStatus.Status"), Value: "IN_PROGRESS"}, true},
		{"mismatch", predicate.StringEquals{Path: document.MustPath("$.AccountStatus.Status"), Value: "DONE"}, false},
		{"type mismatch is false", predicate.StringEquals{Path: document.MustPath("$.AccountStatus.Wait"), Value: "true"}, false},
		{"absent is false", predicate.StringEquals{Path: document.MustPath("$.Nope"), Value: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Eval(doc); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBooleanEquals(t *testing.T) {
	doc := testDoc()

	tests := []struct {
		name string
		p    predicate.Predicate
		want bool
	}{
		{"match", predicate.BooleanEquals{Path: document.MustPath("$.AccountStatus.Wait"), Value: true}, true},
		{"mismatch", predicate.BooleanEquals{Path: document.MustPath("$.AccountStatus.Wait"), Value: false}, false},
		{"type mismatch is false", predicate.BooleanEquals{Path: document.MustPath("$.AccountStatus.Status"), Value: true}, false},
		{"null is false", predicate.BooleanEquals{Path: document.MustPath("$.AccountStatus.Reason"), Value: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Eval(doc); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAndOr(t *testing.T) {
	doc := testDoc()

	busy := predicate.Or{Predicates: []predicate.Predicate{
		predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodeBuild"), Expected: true},
		predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodePipeline"), Expected: true},
	}}
	if !busy.Eval(doc) {
		t.Error("Or: expected true when one branch matches")
	}

	both := predicate.And{Predicates: []predicate.Predicate{
		predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodeBuild"), Expected: true},
		predicate.IsPresent{Path: document.MustPath("$.CheckForRunningProcesses.CodePipeline"), Expected: true},
	}}
	if both.Eval(doc) {
		t.Error("And: expected false when one branch fails")
	}

	waiting := predicate.And{Predicates: []predicate.Predicate{
		predicate.BooleanEquals{Path: document.MustPath("$.AccountStatus.Wait"), Value: true},
		predicate.IsNull{Path: document.MustPath("$.AccountStatus.Status"), Expected: false},
	}}
	if !waiting.Eval(doc) {
		t.Error("And: expected true when all branches match")
	}
}

func TestEvalDoesNotMutate(t *testing.T) {
	doc := testDoc()
	before := doc.Map()

	preds := []predicate.Predicate{
		predicate.IsPresent{Path: document.MustPath("$.X.Y"), Expected: true},
		predicate.IsNull{Path: document.MustPath("$.AccountStatus.Reason"), Expected: true},
		predicate.StringEquals{Path: document.MustPath("$.AccountStatus.Status"), Value: "IN_PROGRESS"},
	}
	for _, p := range preds {
		p.Eval(doc)
	}

	after := doc.Map()
	if len(before) != len(after) {
		t.Error("predicate evaluation mutated the document")
	}
}
