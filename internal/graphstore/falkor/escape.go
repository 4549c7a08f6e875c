// Package falkor implements the Redis-graph-style graphstore.Dialect: the
// dialect lacks parameter binding, so every literal is escaped before
// interpolation. A query longer than the configured bound is recorded in the
// skip list that Dialect.Skipped drains; the queries this package builds pass
// no optional part to Bound, so nothing is elided from them and they are sent
// whole (spec.md §4.5, §6.3). Adapted from original_source/sync_service's FalkorDB extractor and
// loader, which speak GRAPH.QUERY over the same Redis client this package
// reuses from internal/cachetier.
package falkor

import "strings"

// Escape renders s safe for inline interpolation into a GRAPH.QUERY string
// literal: single quotes, backslashes, newlines, and tabs are escaped.
// Escape∘Parse is the identity (see escape_test.go's property test), the
// round-trip guarantee spec.md §9 DESIGN NOTES calls out as essential for
// this dialect.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse reverses Escape, decoding the four escape sequences it produces.
func Parse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '\\':
				b.WriteRune('\\')
				i++
				continue
			case '\'':
				b.WriteRune('\'')
				i++
				continue
			case 'n':
				b.WriteRune('\n')
				i++
				continue
			case 't':
				b.WriteRune('\t')
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// Quote escapes and single-quotes a literal for direct interpolation.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// MaxQueryBytes is the default bound spec.md §4.5 names for assembled
// queries in dialects lacking parameter binding.
const MaxQueryBytes = 10_000

// Bound truncates an assembled query's optional trailing clause (a
// non-essential RETURN projection, typically) when the whole query would
// exceed max bytes, recording the drop via the skip callback so telemetry
// can surface it (spec.md §6.3: "queries longer than the configured bound
// are rewritten to elide non-essential properties").
func Bound(essential string, optional string, max int, skip func(reason string)) string {
	full := essential + optional
	if len(full) <= max {
		return full
	}
	if skip != nil {
		skip("query exceeded max length, dropped optional projection")
	}
	return essential
}
