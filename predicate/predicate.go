// Package predicate implements the boolean conditions evaluated by Choice
// nodes against an execution's Document.
//
// Evaluation is pure and total: predicates never mutate the Document and
// never fail. A type mismatch or an absent path evaluates to false rather
// than an error, so a malformed handler result routes an execution through
// the Choice default instead of crashing it.
package predicate

import "github.com/xraph/stategraph/document"

// Predicate is a boolean condition over a Document.
type Predicate interface {
	Eval(doc *document.Document) bool
}

// IsPresent tests whether a path exists in the Document, regardless of its
// value (an explicit null counts as present). Expected inverts the test.
type IsPresent struct {
	Path     document.Path
	Expected bool
}

// Eval implements Predicate.
func (p IsPresent) Eval(doc *document.Document) bool {
	_, present := doc.Get(p.Path)
	return present == p.Expected
}

// IsNull tests whether a path holds an explicit null. An absent path is
// false for either Expected value: absence and null are distinct.
type IsNull struct {
	Path     document.Path
	Expected bool
}

// Eval implements Predicate.
func (p IsNull) Eval(doc *document.Document) bool {
	v, present := doc.Get(p.Path)
	if !present {
		return false
	}
	return (v == nil) == p.Expected
}

// StringEquals tests whether a path holds a string equal to Value.
// A non-string value is false.
type StringEquals struct {
	Path  document.Path
	Value string
}

// Eval implements Predicate.
func (p StringEquals) Eval(doc *document.Document) bool {
	v, present := doc.Get(p.Path)
	if !present {
		return false
	}
	s, ok := v.(string)
	return ok && s == p.Value
}

// BooleanEquals tests whether a path holds a boolean equal to Value.
// A non-boolean value is false.
type BooleanEquals struct {
	Path  document.Path
	Value bool
}

// Eval implements Predicate.
func (p BooleanEquals) Eval(doc *document.Document) bool {
	v, present := doc.Get(p.Path)
	if !present {
		return false
	}
	b, ok := v.(bool)
	return ok && b == p.Value
}

// And is true when every child predicate is true.
type And struct {
	Predicates []Predicate
}

// Eval implements Predicate.
func (p And) Eval(doc *document.Document) bool {
	for _, child := range p.Predicates {
		if !child.Eval(doc) {
			return false
		}
	}
	return true
}

// Or is true when any child predicate is true.
type Or struct {
	Predicates []Predicate
}

// Eval implements Predicate.
func (p Or) Eval(doc *document.Document) bool {
	for _, child := range p.Predicates {
		if child.Eval(doc) {
			return true
		}
	}
	return false
}
