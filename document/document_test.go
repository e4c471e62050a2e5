package document_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
)

func TestGetDistinguishesAbsentFromNull(t *testing.T) {
	d := document.FromMap(map[string]any{
		"AccountStatus": map[string]any{
			"Id":     "123456789012",
			"Reason": nil,
		},
	})

	v, present := d.Get(document.MustPath("$.AccountStatus.Reason"))
	if !present {
		t.Fatal("explicit null should be present")
	}
	if v != nil {
		t.Errorf("value = %v, want nil", v)
	}

	_, present = d.Get(document.MustPath("$.AccountStatus.Missing"))
	if present {
		t.Error("absent key reported present")
	}

	_, present = d.Get(document.MustPath("$.Nope.Deeper"))
	if present {
		t.Error("absent subtree reported present")
	}
}

func TestGetArrayIndex(t *testing.T) {
	d := document.FromMap(map[string]any{
		"Tags": []any{
			map[string]any{"Key": "vendor", "Value": "aws"},
			map[string]any{"Key": "product-version", "Value": "1.0.0"},
		},
	})

	v, present := d.Get(document.MustPath("$.Tags[1].Key"))
	if !present {
		t.Fatal("expected present")
	}
	if v != "product-version" {
		t.Errorf("value = %v, want product-version", v)
	}

	_, present = d.Get(document.MustPath("$.Tags[5]"))
	if present {
		t.Error("out-of-range index reported present")
	}
}

func TestSetCreatesIntermediates(t *testing.T) {
	d := document.New()
	if err := d.Set(document.MustPath("$.A.B.C"), "deep"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, present := d.Get(document.MustPath("$.A.B.C"))
	if !present || v != "deep" {
		t.Errorf("got (%v, %v), want (deep, true)", v, present)
	}
}

func TestSetPathConflict(t *testing.T) {
	d := document.FromMap(map[string]any{"A": "scalar"})

	err := d.Set(document.MustPath("$.A.B"), 1)
	if !errors.Is(err, stategraph.ErrPathConflict) {
		t.Errorf("err = %v, want ErrPathConflict", err)
	}
}

func TestMergeAtRootReplacesDocument(t *testing.T) {
	d := document.FromMap(map[string]any{"Old": true})

	if err := d.Merge(document.Root, map[string]any{"New": "doc"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if _, present := d.Get(document.MustPath("$.Old")); present {
		t.Error("root merge should replace the whole document")
	}
	if v, _ := d.Get(document.MustPath("$.New")); v != "doc" {
		t.Errorf("New = %v, want doc", v)
	}
}

func TestMergeAtRootRejectsNonObject(t *testing.T) {
	d := document.New()
	err := d.Merge(document.Root, "scalar")
	if !errors.Is(err, stategraph.ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestMergeAtPathReplacesSubtree(t *testing.T) {
	d := document.FromMap(map[string]any{
		"AccountStatus": map[string]any{"Wait": true, "Id": "x"},
		"Other":         "kept",
	})

	if err := d.Merge(document.MustPath("$.AccountStatus"), map[string]any{"Id": "y"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if _, present := d.Get(document.MustPath("$.AccountStatus.Wait")); present {
		t.Error("subtree merge should replace, not union")
	}
	if v, _ := d.Get(document.MustPath("$.Other")); v != "kept" {
		t.Error("sibling subtree must survive a non-root merge")
	}
}

func TestHandlerCopyIsolation(t *testing.T) {
	d := document.FromMap(map[string]any{
		"AccountInfo": map[string]any{"AccountName": "dev-01"},
	})

	snapshot := d.Map()
	snapshot["AccountInfo"].(map[string]any)["AccountName"] = "mutated"

	v, _ := d.Get(document.MustPath("$.AccountInfo.AccountName"))
	if v != "dev-01" {
		t.Errorf("document mutated through handler copy: %v", v)
	}
}

func TestCloneIndependent(t *testing.T) {
	d := document.FromMap(map[string]any{"K": map[string]any{"N": 1}})
	c := d.Clone()

	if err := c.Set(document.MustPath("$.K.N"), 2); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, _ := d.Get(document.MustPath("$.K.N"))
	if v != 1 {
		t.Errorf("clone write leaked into original: %v", v)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := map[string]any{
		"AccountInfo": map[string]any{
			"AccountName": "dev-01",
			"ForceUpdate": false,
			"Tags":        []any{"a", "b"},
		},
	}
	d := document.FromMap(in)

	data, err := d.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	back, err := document.FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if diff := cmp.Diff(d.Map(), back.Map()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
