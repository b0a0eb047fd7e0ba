package ignore

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/paths"
)

// Matcher reports whether paths are excluded from a backup.
// It is immutable after construction and safe for concurrent use.
// A nil *Matcher ignores nothing.
type Matcher struct {
	root     string
	rules    []string
	prefixes []string
	patterns []*pattern
}

// New compiles rules against the source root. Empty and duplicate rules are
// dropped and ~ is expanded. An invalid glob yields an error wrapping
// errors.ErrInvalidConfig.
func New(root string, rules []string) (*Matcher, error) {
	m := &Matcher{root: filepath.Clean(root)}

	seen := make(map[string]struct{}, len(rules))
	for _, raw := range rules {
		rule := paths.ExpandHome(strings.TrimSpace(raw))
		if rule == "" {
			continue
		}
		if _, dup := seen[rule]; dup {
			continue
		}
		seen[rule] = struct{}{}
		m.rules = append(m.rules, rule)

		if hasMeta(rule) {
			p, err := compilePattern(filepath.ToSlash(rule))
			if err != nil {
				return nil, errors.Wrapf(errors.ErrInvalidConfig, "ignore rule %q: %v", raw, err)
			}
			m.patterns = append(m.patterns, p)
			continue
		}

		clean := filepath.Clean(rule)
		if filepath.IsAbs(clean) {
			m.addPrefix(clean)
		}
		// Absolute rules are also read as anchored to the source root, so
		// "/secrets" covers <source>/secrets.
		m.addPrefix(filepath.Join(m.root, clean))
	}

	return m, nil
}

func (m *Matcher) addPrefix(p string) {
	if !slices.Contains(m.prefixes, p) {
		m.prefixes = append(m.prefixes, p)
	}
}

// Rules returns the normalized rules the matcher was built from.
func (m *Matcher) Rules() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.rules)
}

// IsIgnored reports whether path, or one of its ancestors, matches a rule.
// Relative paths are resolved against the source root.
func (m *Matcher) IsIgnored(path string) bool {
	if m == nil || (len(m.prefixes) == 0 && len(m.patterns) == 0) {
		return false
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}
	clean := filepath.Clean(path)

	for _, prefix := range m.prefixes {
		if paths.HasPrefix(clean, prefix) {
			return true
		}
	}

	if len(m.patterns) == 0 {
		return false
	}

	rel := ""
	if r, err := filepath.Rel(m.root, clean); err == nil && r != "." && r != ".." && !strings.HasPrefix(r, "../") {
		rel = filepath.ToSlash(r)
	}
	abs := filepath.ToSlash(clean)

	// A glob matching any ancestor covers the whole subtree.
	for {
		for _, p := range m.patterns {
			if p.match(rel, abs) {
				return true
			}
		}
		if rel == "" {
			return false
		}
		rel = parentOf(rel)
		abs = parentOf(abs)
	}
}

// parentOf returns the slash-separated parent of p, or "" at the top.
func parentOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return ""
	}
	return p[:i]
}
