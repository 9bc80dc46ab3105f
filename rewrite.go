package firebird

import (
	"fmt"
	"strings"
)

// RewrittenQuery is the outcome of Rewrite: the positional SQL handed to the
// driver, the untouched template it came from, and the bound arguments in
// placeholder order. len(Args) always equals the number of '?' substituted
// into SQL, and Args[i] is the value of the i-th named placeholder as read
// left to right in the template.
type RewrittenQuery struct {
	Raw  string
	SQL  string
	Args []any
}

// Rewrite walks template once, left to right, replacing every :name
// placeholder with a single '?' and collecting the matching projected value.
// Text inside single-quoted literals is copied through opaquely, so
// placeholder-like text in a literal is never substituted. Everything is
// emitted into a fresh buffer and the template is never re-indexed after a
// substitution, which is what keeps later placeholder offsets honest.
//
// A placeholder whose name is not in the declared registry aborts the whole
// rewrite with ErrUnknownParam naming that identifier; no partial result is
// returned. A declared name the record lacks binds as nil and becomes SQL
// NULL downstream.
func Rewrite(template string, declared []string, record ProjectedRecord) (RewrittenQuery, error) {
	var buf strings.Builder
	buf.Grow(len(template))

	args := make([]any, 0, len(declared))

	for i := 0; i < len(template); {
		c := template[i]

		// Opaque single-quoted literal, no escape handling: the first quote
		// after the opener closes it. An opener with no closer is not a
		// literal at all; it is emitted as plain text and scanning goes on,
		// so placeholders after a dangling quote are still rewritten.
		if c == '\'' {
			if end := strings.IndexByte(template[i+1:], '\''); end >= 0 {
				buf.WriteString(template[i : i+end+2])
				i += end + 2
				continue
			}
			buf.WriteByte(c)
			i++
			continue
		}

		// :name placeholder; digits are allowed anywhere in the name.
		if c == ':' && i+1 < len(template) && isNameByte(template[i+1]) {
			j := i + 1
			for j < len(template) && isNameByte(template[j]) {
				j++
			}
			name := template[i+1 : j]
			if !containsName(declared, name) {
				return RewrittenQuery{}, fmt.Errorf("%w: %s", ErrUnknownParam, name)
			}
			v, _ := record.Value(name)
			args = append(args, v)
			buf.WriteByte('?')
			i = j
			continue
		}

		buf.WriteByte(c)
		i++
	}

	return RewrittenQuery{Raw: template, SQL: buf.String(), Args: args}, nil
}

// --------------------------------
// Utils
// --------------------------------

// SplitList splits a comma-separated host parameter ("id, name,qty") into
// trimmed names, dropping empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// containsName reports whether name appears in the declared list.
func containsName(declared []string, name string) bool {
	for _, d := range declared {
		if d == name {
			return true
		}
	}
	return false
}

// isNameByte reports whether b is [A-Za-z0-9_].
func isNameByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
}
