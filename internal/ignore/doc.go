// Package ignore decides which paths a backup run skips.
//
// A [Matcher] is built once per run from the configured ignore rules and the
// source root, and answers [Matcher.IsIgnored] for absolute paths. Three rule
// forms are supported:
//
//	/home/x/.cache   absolute prefix: the path and everything beneath it
//	/secrets         also anchored to the source root: <source>/secrets/...
//	build/out        relative rule, anchored to the source root
//	*.tmp            glob without a slash: matches any path component
//	logs/**/*.gz     glob with a slash: anchored to the source root
//
// Globs use [github.com/bmatcuk/doublestar/v4] syntax; a malformed glob is a
// configuration error.
//
// A matched directory implies all of its descendants, so the walker never
// needs to descend into it.
package ignore
