package classcache

import "strings"

// Wildcard is the only metacharacter of the name pattern grammar.
const Wildcard = "*"

// Pattern is a compiled wildcard expression. '*' matches any run of
// characters (including none); everything else matches literally and
// case-sensitively.
type Pattern struct {
	raw   string
	parts []string
}

// CompilePattern compiles raw. Compilation never fails: every string is a
// valid pattern.
func CompilePattern(raw string) *Pattern {
	return &Pattern{raw: raw, parts: strings.Split(raw, Wildcard)}
}

// Exact reports whether the pattern has no wildcard.
func (p *Pattern) Exact() bool {
	return len(p.parts) == 1
}

// Match reports whether s matches the pattern.
func (p *Pattern) Match(s string) bool {
	if p.Exact() {
		return s == p.raw
	}
	first, last := p.parts[0], p.parts[len(p.parts)-1]
	if len(s) < len(first)+len(last) || !strings.HasPrefix(s, first) || !strings.HasSuffix(s, last) {
		return false
	}
	rest := s[len(first) : len(s)-len(last)]
	for _, part := range p.parts[1 : len(p.parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	return true
}

// IsPattern reports whether s contains a wildcard.
func IsPattern(s string) bool {
	return strings.Contains(s, Wildcard)
}
