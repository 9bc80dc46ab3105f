package firebird

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// --------------------------------
// Helpers
// --------------------------------

// projectedFor projects a single record onto fields for rewrite tests.
func projectedFor(rec Record, fields ...string) ProjectedRecord {
	return Project([]Record{rec}, fields)[0]
}

// mustRewrite rewrites a template and asserts no error.
func mustRewrite(t *testing.T, template string, declared []string, rec Record) RewrittenQuery {
	t.Helper()
	rq, err := Rewrite(template, declared, projectedFor(rec, declared...))
	assertNoError(t, err)
	return rq
}

// --------------------------------
// Tests: placeholder substitution
// --------------------------------

// TestRewrite_PlainTextUnchanged verifies that a template without
// placeholders survives the rewrite byte for byte with no bound arguments.
func TestRewrite_PlainTextUnchanged(t *testing.T) {
	const q = "SELECT * FROM customers"
	rq := mustRewrite(t, q, nil, Record{"id": 1})

	if rq.SQL != q {
		t.Fatalf("SQL = %q, want %q", rq.SQL, q)
	}
	if rq.Raw != q {
		t.Fatalf("Raw = %q, want %q", rq.Raw, q)
	}
	if len(rq.Args) != 0 {
		t.Fatalf("len(Args) = %d, want 0", len(rq.Args))
	}
}

// TestRewrite_SubstitutesInTemplateOrder verifies that arguments follow the
// placeholder order of the template, not the declaration order.
func TestRewrite_SubstitutesInTemplateOrder(t *testing.T) {
	rq := mustRewrite(t,
		"UPDATE t SET b = :b WHERE a = :a",
		[]string{"a", "b"},
		Record{"a": 1, "b": "x"},
	)

	if want := "UPDATE t SET b = ? WHERE a = ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{"x", 1})
}

// TestRewrite_RepeatedPlaceholder verifies that every occurrence of a name
// binds its own argument.
func TestRewrite_RepeatedPlaceholder(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT * FROM t WHERE id = :id OR parent = :id",
		[]string{"id"},
		Record{"id": 7},
	)

	if want := "SELECT * FROM t WHERE id = ? OR parent = ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{7, 7})
}

// TestRewrite_QuotedLiteralStaysOpaque verifies that placeholder-like text
// inside a single-quoted literal is copied through untouched while real
// placeholders around it are still substituted.
func TestRewrite_QuotedLiteralStaysOpaque(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT * FROM t WHERE note = 'use :id here' AND id = :id",
		[]string{"id"},
		Record{"id": 5},
	)

	if want := "SELECT * FROM t WHERE note = 'use :id here' AND id = ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{5})
}

// TestRewrite_DoubledQuoteSplitsLiterals documents the no-escape rule: a
// doubled quote reads as two adjacent literals, placeholder text within them
// stays protected, and the surrounding text is reproduced byte for byte.
func TestRewrite_DoubledQuoteSplitsLiterals(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT 'it''s :not', :x",
		[]string{"x"},
		Record{"x": 9},
	)

	if want := "SELECT 'it''s :not', ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{9})
}

// TestRewrite_DanglingQuoteDoesNotProtect verifies that an opening quote
// with no closer is treated as plain text, so placeholders after it are
// still rewritten.
func TestRewrite_DanglingQuoteDoesNotProtect(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT * FROM t WHERE a = 'oops AND b = :x",
		[]string{"x"},
		Record{"x": 3},
	)

	if want := "SELECT * FROM t WHERE a = 'oops AND b = ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{3})
}

// TestRewrite_DigitLeadingName verifies that names may start with a digit.
func TestRewrite_DigitLeadingName(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT :2nd FROM t",
		[]string{"2nd"},
		Record{"2nd": "v"},
	)

	if want := "SELECT ? FROM t"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{"v"})
}

// TestRewrite_DeclaredButAbsentBindsNil verifies that a declared name the
// record lacks still substitutes and binds nil.
func TestRewrite_DeclaredButAbsentBindsNil(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT * FROM t WHERE id = :id",
		[]string{"id"},
		Record{"other": 1},
	)

	if want := "SELECT * FROM t WHERE id = ?"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{nil})
}

// TestRewrite_UnknownPlaceholder verifies that an undeclared name aborts the
// rewrite with ErrUnknownParam naming exactly that identifier and returns no
// partial result.
func TestRewrite_UnknownPlaceholder(t *testing.T) {
	rq, err := Rewrite(
		"SELECT * FROM t WHERE id = :id AND x = :nope",
		[]string{"id"},
		projectedFor(Record{"id": 1}, "id"),
	)
	if err == nil {
		t.Fatalf("expected error for undeclared placeholder")
	}
	if !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("error = %v, want ErrUnknownParam", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error %q does not name the placeholder", err)
	}
	if rq.SQL != "" || rq.Args != nil {
		t.Fatalf("partial result returned: %+v", rq)
	}
}

// TestRewrite_ColonWithoutName verifies that a bare colon (or one followed
// by a non-name byte) is plain text.
func TestRewrite_ColonWithoutName(t *testing.T) {
	rq := mustRewrite(t,
		"SELECT 1 FROM t WHERE x = ': ' AND t = :t AND u = : u",
		[]string{"t"},
		Record{"t": 2},
	)

	if want := "SELECT 1 FROM t WHERE x = ': ' AND t = ? AND u = : u"; rq.SQL != want {
		t.Fatalf("SQL = %q, want %q", rq.SQL, want)
	}
	assertArgsEqual(t, rq.Args, []any{2})
}

// --------------------------------
// Tests: SplitList
// --------------------------------

// TestSplitList verifies trimming and the dropping of empty entries.
func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"id,name", []string{"id", "name"}},
		{" id , name ", []string{"id", "name"}},
		{"id,,name,", []string{"id", "name"}},
		{"", []string{}},
		{"  ,  ", []string{}},
		{"only", []string{"only"}},
	}
	for _, c := range cases {
		if got := SplitList(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("SplitList(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}
