// Package extract locates gettext-style translation calls in PHP and
// JavaScript sources and aggregates them into template entries.
//
// Extraction is pattern based, not a parser: calls are recognized by
// regular expressions over the raw file text. Comments, string
// concatenation and nested calls are not understood, so a call inside a
// comment is still extracted and a message built by concatenation is
// missed.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Dialect is a source language whose call syntax the matcher knows.
type Dialect string

const (
	PHP        Dialect = "php"
	JavaScript Dialect = "js"
)

// Dialects lists the supported dialects in a stable order.
var Dialects = []Dialect{PHP, JavaScript}

// ParseDialect converts a configuration name into a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "php":
		return PHP, nil
	case "js", "javascript":
		return JavaScript, nil
	}
	return "", fmt.Errorf("unknown source dialect %q (valid: php, js)", name)
}

// Shape identifies one of the recognized translation call forms.
// Its value is the function name as written in source.
type Shape string

const (
	// ShapeSimple is __(message, domain).
	ShapeSimple Shape = "__"
	// ShapeEcho is _e(message, domain); it echoes the translation but
	// extracts exactly like ShapeSimple.
	ShapeEcho Shape = "_e"
	// ShapeContext is _x(message, context, domain).
	ShapeContext Shape = "_x"
	// ShapePlural is _n(singular, plural, count, domain).
	ShapePlural Shape = "_n"
	// ShapeContextPlural is _nx(singular, plural, count, context, domain).
	ShapeContextPlural Shape = "_nx"
)

// Shapes lists all call shapes in a stable order.
var Shapes = []Shape{ShapeSimple, ShapeEcho, ShapeContext, ShapePlural, ShapeContextPlural}

// Keywords returns the call names, suitable for X-Poedit-KeywordsList.
func Keywords() []string {
	kws := make([]string, len(Shapes))
	for i, s := range Shapes {
		kws[i] = string(s)
	}
	return kws
}

// Match is one recognized translation call.
type Match struct {
	Shape   Shape
	Dialect Dialect
	Message string
	// Context is empty unless the shape carries one.
	Context string
	// Plural is empty unless the shape carries one.
	Plural string
	// Offset is the byte offset of the call name in the source text.
	Offset int
	// Line is the 1-based line of Offset.
	Line int
}

// Matcher finds translation calls in source text. Implementations never
// fail; text without calls yields no matches.
type Matcher interface {
	Match(src string, d Dialect) []Match
}

// quotedArg matches a single- or double-quoted literal. The closing quote
// must equal the opening one; backslash escapes are skipped over, and an
// unescaped newline ends the attempt.
const quotedArg = `(?:'((?:[^'\\\n]|\\.)*)'|"((?:[^"\\\n]|\\.)*)")`

// countArg matches the count expression of plural calls per dialect.
var countArg = map[Dialect]string{
	PHP:        `\$[A-Za-z0-9_]+(?:->[A-Za-z0-9_]+)*`,
	JavaScript: `[A-Za-z0-9_$]+(?:\.[A-Za-z0-9_$]+)*`,
}

type argKind int

const (
	argMessage argKind = iota
	argContext
	argPlural
	argCount
)

// shapeArgs lists the arguments of each shape before the trailing domain.
var shapeArgs = map[Shape][]argKind{
	ShapeSimple:        {argMessage},
	ShapeEcho:          {argMessage},
	ShapeContext:       {argMessage, argContext},
	ShapePlural:        {argMessage, argPlural, argCount},
	ShapeContextPlural: {argMessage, argPlural, argCount, argContext},
}

type shapePattern struct {
	shape Shape
	re    *regexp.Regexp
	// groups maps each quoted argument to its pair of capture groups.
	groups map[argKind][2]int
}

// PatternMatcher is the regular expression Matcher. It only accepts
// calls whose last argument is the configured text domain literal.
type PatternMatcher struct {
	patterns map[Dialect][]shapePattern
}

var _ Matcher = (*PatternMatcher)(nil)

// NewPatternMatcher compiles the call patterns for domain.
func NewPatternMatcher(domain string) *PatternMatcher {
	m := &PatternMatcher{
		patterns: make(map[Dialect][]shapePattern),
	}
	q := regexp.QuoteMeta(domain)
	domainArg := `(?:'` + q + `'|"` + q + `")`

	for _, d := range Dialects {
		for _, shape := range Shapes {
			var b strings.Builder
			b.WriteString(regexp.QuoteMeta(string(shape)))
			b.WriteString(`\(\s*`)

			groups := make(map[argKind][2]int)
			next := 1
			for _, kind := range shapeArgs[shape] {
				if kind == argCount {
					b.WriteString(countArg[d])
				} else {
					b.WriteString(quotedArg)
					groups[kind] = [2]int{next, next + 1}
					next += 2
				}
				b.WriteString(`\s*,\s*`)
			}
			b.WriteString(domainArg)
			b.WriteString(`\s*\)`)

			m.patterns[d] = append(m.patterns[d], shapePattern{
				shape:  shape,
				re:     regexp.MustCompile(b.String()),
				groups: groups,
			})
		}
	}
	return m
}

// Match returns every recognized call in src, ordered by offset.
// Calls with an empty message are skipped: the empty id is reserved
// for the catalog header.
func (m *PatternMatcher) Match(src string, d Dialect) []Match {
	var matches []Match
	lines := newLineIndex(src)

	for _, p := range m.patterns[d] {
		for _, loc := range p.re.FindAllStringSubmatchIndex(src, -1) {
			msg, _ := literalAt(src, loc, p.groups[argMessage], d)
			if msg == "" {
				continue
			}
			match := Match{
				Shape:   p.shape,
				Dialect: d,
				Message: msg,
				Offset:  loc[0],
				Line:    lines.lineOf(loc[0]),
			}
			if g, ok := p.groups[argContext]; ok {
				match.Context, _ = literalAt(src, loc, g, d)
			}
			if g, ok := p.groups[argPlural]; ok {
				match.Plural, _ = literalAt(src, loc, g, d)
			}
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Offset < matches[j].Offset
	})
	return matches
}

// literalAt returns the unescaped payload of the quoted argument whose
// single- and double-quote alternatives are capture groups g[0] and g[1].
func literalAt(src string, loc []int, g [2]int, d Dialect) (string, bool) {
	if start := loc[2*g[0]]; start >= 0 {
		return unescape(src[start:loc[2*g[0]+1]], '\'', d), true
	}
	if start := loc[2*g[1]]; start >= 0 {
		return unescape(src[start:loc[2*g[1]+1]], '"', d), true
	}
	return "", false
}

// unescape resolves backslash escapes in a literal payload. PHP single
// quoted strings only know \' and \\; everything else keeps its
// backslash. PHP double quoted strings and all JavaScript strings also
// resolve \n, \t and \r.
func unescape(s string, quote byte, d Dialect) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	control := d == JavaScript || quote == '"'

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch {
		case next == '\\' || next == quote:
			b.WriteByte(next)
		case control && next == 'n':
			b.WriteByte('\n')
		case control && next == 't':
			b.WriteByte('\t')
		case control && next == 'r':
			b.WriteByte('\r')
		case d == JavaScript && (next == '\'' || next == '"'):
			b.WriteByte(next)
		default:
			b.WriteByte(c)
			b.WriteByte(next)
		}
		i++
	}
	return b.String()
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

func (l lineIndex) lineOf(offset int) int {
	return sort.SearchInts(l, offset) + 1
}
