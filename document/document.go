// Package document implements the JSON-like payload carried by an execution
// through its state graph.
//
// A Document is a mutable tree of objects, arrays, strings, numbers,
// booleans, and nulls, addressed by $-rooted paths. Absence is first-class:
// Get distinguishes a path that is missing from one that holds an explicit
// null. Task handlers receive deep copies and their results are merged back,
// so a handler can never mutate engine state directly.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/stategraph"
)

// Document is a mutable JSON-like tree. The zero value is not usable;
// create one with New, FromMap, or FromJSON.
type Document struct {
	root map[string]any
}

// New returns an empty Document.
func New() *Document {
	return &Document{root: make(map[string]any)}
}

// FromMap builds a Document from a map, deep-copying the input so the
// caller's map stays independent.
func FromMap(m map[string]any) *Document {
	if m == nil {
		return New()
	}
	return &Document{root: copyMap(m)}
}

// FromJSON builds a Document from JSON bytes. The top level must be an
// object.
func FromJSON(data []byte) (*Document, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return &Document{root: m}, nil
}

// Clone returns an independent deep copy of the Document.
func (d *Document) Clone() *Document {
	return &Document{root: copyMap(d.root)}
}

// Map returns a deep copy of the Document's contents.
func (d *Document) Map() map[string]any {
	return copyMap(d.root)
}

// JSON returns the Document encoded as JSON.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.Marshal(d.root)
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return data, nil
}

// Get returns the value at the given path and whether it is present.
// An explicit null returns (nil, true); an absent path returns (nil, false).
// Values are returned by reference; callers must not mutate them.
func (d *Document) Get(p Path) (any, bool) {
	if p.IsRoot() {
		return d.root, true
	}

	var cur any = d.root
	for _, seg := range p.segments {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
			continue
		}

		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := obj[seg.key]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Set writes a deep copy of value at the given path, creating intermediate
// objects for missing keys. It fails with stategraph.ErrPathConflict when a
// path step traverses a value that is present but not an object, and with
// stategraph.ErrInvalidPath for metadata paths, index targets, and non-object
// root writes.
func (d *Document) Set(p Path, value any) error {
	if p.IsMeta() {
		return fmt.Errorf("%w: cannot write metadata path %q", stategraph.ErrInvalidPath, p)
	}

	if p.IsRoot() {
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: root value must be an object, got %T", stategraph.ErrInvalidPath, value)
		}
		d.root = copyMap(m)
		return nil
	}

	cur := d.root
	for i, seg := range p.segments {
		if seg.isIndex {
			// Writes address object keys only; array elements are replaced
			// wholesale by writing their containing field.
			return fmt.Errorf("%w: cannot write through index in %q", stategraph.ErrInvalidPath, p)
		}

		last := i == len(p.segments)-1
		if last {
			cur[seg.key] = copyValue(value)
			return nil
		}

		next, present := cur[seg.key]
		if !present {
			child := make(map[string]any)
			cur[seg.key] = child
			cur = child
			continue
		}

		obj, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q is not an object at %q", stategraph.ErrPathConflict, p, seg.key)
		}
		cur = obj
	}
	return nil
}

// Merge replaces the subtree at the given path with a deep copy of value.
// At the root path the value must be an object and becomes the whole
// Document. Elsewhere it behaves like Set.
func (d *Document) Merge(p Path, value any) error {
	return d.Set(p, value)
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("document: decode: %w", err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	d.root = m
	return nil
}

// ──────────────────────────────────────────────────
// Deep copy helpers
// ──────────────────────────────────────────────────

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copySlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		return copySlice(t)
	default:
		// Scalars (string, bool, float64, int, nil) are immutable.
		return v
	}
}
