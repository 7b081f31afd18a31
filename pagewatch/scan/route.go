package scan

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultPathPattern matches a two-segment item path: entity identifier
// followed by item identifier.
const DefaultPathPattern = `^/profile/[^/]+/post/[^/]+/?$`

// Route describes the monitored page and what counts as an item link on it.
type Route struct {
	// Prefix is the path prefix of the monitored route, e.g. "/saved".
	Prefix string
	// Pattern is the strict check applied to every candidate link path.
	Pattern *regexp.Regexp
}

// NewRoute compiles a Route.
func NewRoute(prefix, pattern string) (Route, error) {
	if prefix == "" {
		return Route{}, fmt.Errorf("scan: route prefix is empty")
	}
	if pattern == "" {
		pattern = DefaultPathPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Route{}, fmt.Errorf("scan: path pattern: %w", err)
	}
	return Route{Prefix: prefix, Pattern: re}, nil
}

// Match reports whether loc is on the monitored route: the prefix itself
// or any path below it.
func (r Route) Match(loc *url.URL) bool {
	if loc == nil {
		return false
	}
	p := loc.Path
	if p == r.Prefix {
		return true
	}
	// Segment boundary: "/saved" covers "/saved/x" but not "/savedfeeds".
	return strings.HasPrefix(p, strings.TrimSuffix(r.Prefix, "/")+"/")
}

// Resolve resolves href against the page location and validates it. It
// returns the absolute URL and the normalised resource path used for
// deduplication. Links to another origin are rejected: the host page only
// uses relative navigation for its own items.
func (r Route) Resolve(loc *url.URL, href string) (*url.URL, string, bool) {
	href = strings.TrimSpace(href)
	if loc == nil || href == "" {
		return nil, "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, "", false
	}
	abs := loc.ResolveReference(ref)
	if abs.Scheme != loc.Scheme || abs.Host != loc.Host {
		return nil, "", false
	}
	if r.Pattern == nil || !r.Pattern.MatchString(abs.Path) {
		return nil, "", false
	}
	abs.Fragment = ""
	path := strings.TrimSuffix(abs.Path, "/")
	return abs, path, true
}
