// CLAUDE:SUMMARY Container-first saved-item scan: route guard, main-region restriction, nesting exclusion, visibility gating, path dedup.
package scan

import (
	"fmt"
	"net/url"
	"sort"
)

// Default selectors for the saved-posts feed.
const (
	DefaultPrefix    = "/saved"
	DefaultMain      = `main, [role="main"]`
	DefaultContainer = `[role="link"][tabindex]`
	DefaultLink      = `a[href*="/post/"]`
)

// Category distinguishes the two handler sets installed per card.
type Category string

const (
	CategoryContainer Category = "container"
	CategoryLink      Category = "link"
)

// Handle asks the page to install middle-click interception on one node.
type Handle struct {
	NodeID   string   `json:"id"`
	Category Category `json:"category"`
	URL      string   `json:"url"`
}

// Result is the outcome of one scan pass.
type Result struct {
	// OnRoute is false when the location did not match the route; the scan
	// then stops before touching the tree.
	OnRoute bool
	// Paths holds the unique resource paths, sorted.
	Paths []string
	// Handles lists every accepted container and link, handled or not.
	Handles []Handle
}

// Count is the number of unique saved items.
func (r Result) Count() int { return len(r.Paths) }

// Config holds the scanner's route and selectors.
type Config struct {
	Route     Route
	Main      Selector
	Container Selector
	Link      Selector
}

// DefaultConfig returns the configuration for the saved-posts page.
func DefaultConfig() Config {
	route, _ := NewRoute(DefaultPrefix, DefaultPathPattern)
	return Config{
		Route:     route,
		Main:      MustCompile(DefaultMain),
		Container: MustCompile(DefaultContainer),
		Link:      MustCompile(DefaultLink),
	}
}

// Scanner runs the scan algorithm. It is stateless and safe for concurrent use.
type Scanner struct {
	cfg Config
}

// NewScanner validates cfg and returns a Scanner.
func NewScanner(cfg Config) (*Scanner, error) {
	if cfg.Container.Empty() || cfg.Link.Empty() {
		return nil, fmt.Errorf("scan: container and link selectors are required")
	}
	if cfg.Route.Pattern == nil {
		return nil, fmt.Errorf("scan: route pattern is required")
	}
	return &Scanner{cfg: cfg}, nil
}

// Config returns the scanner configuration.
func (s *Scanner) Config() Config { return s.cfg }

// Scan computes the saved items visible in doc.
//
// A container counts only when it is visible and no ancestor is itself a
// container, which keeps quoted cards embedded in a saved card from being
// counted twice. Inside each container the first visible link whose nearest
// container is that same container, and whose path passes the strict
// pattern, identifies the card. Paths are deduplicated.
func (s *Scanner) Scan(doc *Document) Result {
	if doc == nil || doc.Root == nil || !s.cfg.Route.Match(doc.Location) {
		return Result{}
	}

	res := Result{OnRoute: true}
	root := s.region(doc.Root)
	seen := make(map[string]struct{})

	root.Walk(func(n *Node) bool {
		if !s.cfg.Container.Match(n) {
			return true
		}
		// Nested containers are never top-level; their links are looked at
		// only through their own container, which is skipped here.
		if !n.Visible || n.Closest(s.cfg.Container) != nil {
			return false
		}

		link, abs, path := s.cardLink(doc, n)
		if link == nil {
			return false
		}
		if _, dup := seen[path]; !dup {
			seen[path] = struct{}{}
			res.Paths = append(res.Paths, path)
		}
		u := abs.String()
		res.Handles = append(res.Handles,
			Handle{NodeID: n.ID, Category: CategoryContainer, URL: u},
			Handle{NodeID: link.ID, Category: CategoryLink, URL: u},
		)
		return false
	})

	sort.Strings(res.Paths)
	return res
}

// region returns the primary content region, or the whole tree.
func (s *Scanner) region(root *Node) *Node {
	if s.cfg.Main.Empty() {
		return root
	}
	var found *Node
	root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if s.cfg.Main.Match(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return root
	}
	return found
}

func (s *Scanner) cardLink(doc *Document, container *Node) (*Node, *url.URL, string) {
	var (
		link *Node
		abs  *url.URL
		path string
	)
	for _, c := range container.Children {
		c.Walk(func(n *Node) bool {
			if link != nil {
				return false
			}
			if s.cfg.Container.Match(n) {
				// Embedded card: its links belong to it.
				return false
			}
			if !s.cfg.Link.Match(n) || !n.Visible {
				return true
			}
			href, _ := n.Attr("href")
			u, p, ok := s.cfg.Route.Resolve(doc.Location, href)
			if !ok {
				return true
			}
			link, abs, path = n, u, p
			return false
		})
		if link != nil {
			break
		}
	}
	return link, abs, path
}
