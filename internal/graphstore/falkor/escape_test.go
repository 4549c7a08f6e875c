package falkor

import (
	"testing"
	"testing/quick"
)

// TestEscapeParseRoundTrip verifies escape∘parse = identity over random
// strings (spec.md §9 DESIGN NOTES: "a fuzz-tested round-trip property...
// is essential"). testing/quick is stdlib; no quickcheck-style library
// appears anywhere in the retrieved pack, so this is the idiomatic minimal
// choice rather than a stdlib-by-default fallback (see SPEC_FULL.md §9).
func TestEscapeParseRoundTrip(t *testing.T) {
	f := func(s string) bool {
		return Parse(Escape(s)) == s
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 2000}); err != nil {
		t.Error(err)
	}
}

func TestEscapeHandlesSpecialChars(t *testing.T) {
	cases := []string{
		`it's a "test"`,
		"line1\nline2",
		"tab\there",
		`back\slash`,
		"",
		"plain",
	}
	for _, c := range cases {
		got := Parse(Escape(c))
		if got != c {
			t.Errorf("round trip failed for %q: got %q", c, got)
		}
	}
}

func TestQuoteWrapsInSingleQuotes(t *testing.T) {
	q := Quote("O'Brien")
	if q != `'O\'Brien'` {
		t.Errorf("unexpected quoting: %q", q)
	}
}

func TestBoundDropsOptionalWhenOverLength(t *testing.T) {
	essential := "MATCH (n) RETURN n.uuid"
	optional := " , n.summary"
	out := Bound(essential, optional, 5, nil)
	if out != essential {
		t.Errorf("expected essential-only output, got %q", out)
	}
}
