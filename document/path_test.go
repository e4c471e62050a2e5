package document_test

import (
	"testing"

	"github.com/xraph/stategraph/document"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$", "$"},
		{"$$", "$$"},
		{"$.AccountInfo.AccountName", "$.AccountInfo.AccountName"},
		{"$.Tags[0].Key", "$.Tags[0].Key"},
		{"$.Matrix[1][2]", "$.Matrix[1][2]"},
		{"$$.Execution.Id", "$$.Execution.Id"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := document.ParsePath(tt.in)
			if err != nil {
				t.Fatalf("ParsePath(%q): %v", tt.in, err)
			}
			if got := p.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	bad := []string{
		"",
		"AccountInfo",
		".leading",
		"$.",
		"$..double",
		"$.a[x]",
		"$.a[-1]",
		"$.a[1",
	}

	for _, in := range bad {
		if _, err := document.ParsePath(in); err == nil {
			t.Errorf("ParsePath(%q): expected error", in)
		}
	}
}

func TestPathRootAndMeta(t *testing.T) {
	if !document.MustPath("$").IsRoot() {
		t.Error("$ should be root")
	}
	if document.MustPath("$.a").IsRoot() {
		t.Error("$.a should not be root")
	}
	if !document.MustPath("$$.Execution.Id").IsMeta() {
		t.Error("$$ path should be meta")
	}
	if document.MustPath("$.a").IsMeta() {
		t.Error("$ path should not be meta")
	}
}

func TestPathTextRoundTrip(t *testing.T) {
	p := document.MustPath("$.CheckForRunningProcesses.CodeBuild")
	data, err := p.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back document.Path
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back.String() != p.String() {
		t.Errorf("round trip mismatch: %q != %q", back.String(), p.String())
	}
}
