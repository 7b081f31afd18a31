// Package scan finds saved-item cards in a page's element tree and derives
// the set of unique resource paths they point to.
//
// The tree is a plain Go structure so the same algorithm runs against a live
// tab (built from an in-page snapshot, see FromSnapshot) and against static
// HTML (ParseHTML). Scanning never mutates the tree.
package scan

import "net/url"

// Node is one element of a page snapshot.
type Node struct {
	// ID identifies the element within its document for handler installation.
	// IDs are never reused across documents, so a recreated element always
	// gets a fresh ID even when it renders the same saved item.
	ID       string
	Tag      string
	Attrs    map[string]string
	Visible  bool
	Parent   *Node
	Children []*Node
}

// Attr returns an attribute value and whether it is present.
func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// AppendChild links c under n.
func (n *Node) AppendChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the visited node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Closest returns the nearest strict ancestor matching sel, or nil.
func (n *Node) Closest(sel Selector) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if sel.Match(p) {
			return p
		}
	}
	return nil
}

// Document is a snapshot of a page: its location plus element tree.
type Document struct {
	Location *url.URL
	Root     *Node
}
