package ignore

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pattern is a glob rule in doublestar syntax.
type pattern struct {
	rel string // matched against the slash-separated path relative to the source root
	abs string // matched against the absolute path; empty for relative rules
}

func hasMeta(rule string) bool {
	return strings.ContainsAny(rule, "*?[{")
}

// compilePattern builds a glob rule. Rules starting with / or containing a /
// are anchored to the source root; others match any trailing run of path
// components.
func compilePattern(rule string) (*pattern, error) {
	glob := strings.TrimSuffix(rule, "/")

	p := &pattern{rel: strings.TrimPrefix(glob, "/")}
	if !strings.Contains(glob, "/") {
		p.rel = "**/" + glob
	}
	if strings.HasPrefix(glob, "/") {
		p.abs = glob
	}

	for _, g := range []string{p.rel, p.abs} {
		if g != "" && !doublestar.ValidatePattern(g) {
			return nil, doublestar.ErrBadPattern
		}
	}
	return p, nil
}

// match reports whether the pattern matches the path given in both relative
// and absolute slash form. rel is empty when the path lies outside the source root.
func (p *pattern) match(rel, abs string) bool {
	if rel != "" {
		if ok, _ := doublestar.Match(p.rel, rel); ok {
			return true
		}
	}
	if p.abs == "" {
		return false
	}
	ok, _ := doublestar.Match(p.abs, abs)
	return ok
}
