package pipeline

import "strings"

// ScopeMatches reports whether a middleware path scope applies to a request
// path. The scope is a plain prefix, no wildcards or patterns: "/api"
// matches "/api" and "/api/v1" but not "/apiextra". A scope of "/" (or "")
// matches every path, and a scope with a trailing slash matches anything it
// prefixes.
func ScopeMatches(scope, path string) bool {
	if scope == "" {
		scope = "/"
	}

	if scope == "/" || strings.HasSuffix(scope, "/") {
		return path == scope ||
			strings.HasPrefix(path, scope) ||
			strings.HasPrefix(path, scope+"/")
	}

	return path == scope || strings.HasPrefix(path, scope+"/")
}
