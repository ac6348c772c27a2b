// Package ident turns GPIO labels into source identifiers.
package ident

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/bspgen/internal/ir"
)

// DefaultPrefix is prepended to identifiers that would start with a digit
// or underscore.
const DefaultPrefix = "pin_"

// keywords get a "_pin" suffix.
var keywords = map[string]bool{
	"fn": true, "let": true, "mod": true, "type": true, "struct": true,
	"enum": true, "impl": true, "trait": true, "const": true, "static": true,
	"crate": true, "super": true, "self": true, "Self": true, "use": true,
	"pub": true, "move": true, "async": true, "await": true, "loop": true,
	"while": true, "for": true, "in": true, "match": true, "if": true,
	"else": true, "return": true,
}

// Sanitize converts label into a lower-case identifier. An empty prefix
// means DefaultPrefix. The result may be empty.
func Sanitize(label, prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var b strings.Builder
	for _, r := range norm.NFC.String(label) {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	if s != "" && (s[0] == '_' || (s[0] >= '0' && s[0] <= '9')) {
		s = prefix + strings.TrimLeft(s, "_")
	}
	if keywords[s] {
		s += "_pin"
	}
	return strings.Trim(s, "_")
}

// Options controls Assign.
type Options struct {
	Prefix          string // see Sanitize
	FailOnDuplicate bool
}

// Assign maps pin names to identifiers derived from their labels, in pin
// order. Unlabelled pins and labels that sanitize to nothing are skipped.
// An identifier already in use, whether from an earlier label or an earlier
// suffix, becomes name_2, name_3, ... unless FailOnDuplicate is set, in
// which case DUPLICATE_LABEL is returned. Identifiers are unique.
func Assign(pins []ir.Pin, opts Options) (ir.OrderedMap[string], error) {
	var idents ir.OrderedMap[string]
	next := make(map[string]int)
	taken := make(map[string]bool)
	for _, p := range pins {
		if p.Label == nil {
			continue
		}
		id := Sanitize(*p.Label, opts.Prefix)
		if id == "" {
			continue
		}
		if taken[id] {
			if opts.FailOnDuplicate {
				return ir.OrderedMap[string]{}, ir.NewDuplicateLabel(id, p.Pin)
			}
			n := next[id]
			if n < 2 {
				n = 2
			}
			for taken[fmt.Sprintf("%s_%d", id, n)] {
				n++
			}
			next[id] = n + 1
			id = fmt.Sprintf("%s_%d", id, n)
		}
		taken[id] = true
		idents.Set(p.Pin, id)
	}
	return idents, nil
}
