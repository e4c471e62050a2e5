package document

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one step in a path: either an object key or an array index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// Path addresses a location inside a Document. Paths are rooted at "$"
// (the payload) or "$$" (the read-only execution metadata) and use dotted
// keys with optional array indexing: "$.AccountInfo.AccountTags[0].Key".
//
// The zero Path addresses the payload root.
type Path struct {
	meta     bool
	segments []segment
}

// Root is the path addressing the whole payload ("$").
var Root = Path{}

// ParsePath parses a path expression. Valid forms:
//
//	$                     payload root
//	$.a.b                 nested keys
//	$.items[2].name       array indexing
//	$$.Execution.Id       execution metadata
func ParsePath(s string) (Path, error) {
	rest, meta, err := stripRoot(s)
	if err != nil {
		return Path{}, err
	}

	p := Path{meta: meta}
	if rest == "" {
		return p, nil
	}

	for _, raw := range strings.Split(rest, ".") {
		segs, segErr := parseSegment(s, raw)
		if segErr != nil {
			return Path{}, segErr
		}
		p.segments = append(p.segments, segs...)
	}

	return p, nil
}

// MustPath is like ParsePath but panics on error. Use for hardcoded paths.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(fmt.Sprintf("document: must parse path %q: %v", s, err))
	}
	return p
}

func stripRoot(s string) (rest string, meta bool, err error) {
	switch {
	case s == "$" || s == "$$":
		return "", s == "$$", nil
	case strings.HasPrefix(s, "$$."):
		return s[3:], true, nil
	case strings.HasPrefix(s, "$."):
		return s[2:], false, nil
	default:
		return "", false, fmt.Errorf("document: parse path %q: must start with $ or $$", s)
	}
}

// parseSegment splits a dotted segment like `items[2]` into its key and
// index parts.
func parseSegment(full, raw string) ([]segment, error) {
	if raw == "" {
		return nil, fmt.Errorf("document: parse path %q: empty segment", full)
	}

	key := raw
	var indexes []int
	for {
		open := strings.IndexByte(key, '[')
		if open < 0 {
			break
		}
		if !strings.HasSuffix(key, "]") {
			return nil, fmt.Errorf("document: parse path %q: unterminated index in %q", full, raw)
		}
		idxPart := key[open+1 : len(key)-1]
		// Only single, non-nested indexes are supported per segment chunk;
		// multiple ([1][2]) arrive as nested closings and are split here.
		for _, part := range strings.Split(idxPart, "][") {
			n, convErr := strconv.Atoi(part)
			if convErr != nil || n < 0 {
				return nil, fmt.Errorf("document: parse path %q: bad index %q", full, part)
			}
			indexes = append(indexes, n)
		}
		key = key[:open]
	}

	if key == "" && len(indexes) == 0 {
		return nil, fmt.Errorf("document: parse path %q: empty segment", full)
	}

	var out []segment
	if key != "" {
		out = append(out, segment{key: key})
	}
	for _, n := range indexes {
		out = append(out, segment{index: n, isIndex: true})
	}
	return out, nil
}

// IsRoot reports whether the path addresses the payload root ("$").
func (p Path) IsRoot() bool { return !p.meta && len(p.segments) == 0 }

// IsMeta reports whether the path addresses execution metadata ("$$...").
func (p Path) IsMeta() bool { return p.meta }

// String returns the canonical path expression.
func (p Path) String() string {
	var b strings.Builder
	if p.meta {
		b.WriteString("$$")
	} else {
		b.WriteString("$")
	}
	for _, seg := range p.segments {
		if seg.isIndex {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteString("]")
		} else {
			b.WriteString(".")
			b.WriteString(seg.key)
		}
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(data []byte) error {
	parsed, err := ParsePath(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
