package scan

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"
)

var docSeq atomic.Uint64

// ParseHTML builds a Document from static markup, for checking a saved page
// without a browser.
//
// Without layout, visibility is approximated from markup: the hidden
// attribute and inline display:none, visibility:hidden, opacity:0 or a zero
// width/height hide an element and all its descendants.
func ParseHTML(r io.Reader, location string) (*Document, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("scan: location: %w", err)
	}
	tree, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("scan: parse html: %w", err)
	}

	prefix := "d" + strconv.FormatUint(docSeq.Add(1), 10) + ":"
	seq := 0
	root := &Node{ID: prefix + "0", Tag: "#document", Visible: true}

	var build func(parent *Node, h *html.Node)
	build = func(parent *Node, h *html.Node) {
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			seq++
			n := &Node{
				ID:    prefix + strconv.Itoa(seq),
				Tag:   strings.ToLower(c.Data),
				Attrs: make(map[string]string, len(c.Attr)),
			}
			for _, a := range c.Attr {
				n.Attrs[strings.ToLower(a.Key)] = a.Val
			}
			n.Visible = parent.Visible && !hiddenByMarkup(n)
			parent.AppendChild(n)
			build(n, c)
		}
	}
	build(root, tree)

	return &Document{Location: loc, Root: root}, nil
}

func hiddenByMarkup(n *Node) bool {
	if _, ok := n.Attr("hidden"); ok {
		return true
	}
	style, ok := n.Attr("style")
	if !ok {
		return false
	}
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.Join(strings.Fields(v), ""))
		v = strings.TrimSuffix(v, "!important")
		switch k {
		case "display":
			if v == "none" {
				return true
			}
		case "visibility":
			if v == "hidden" || v == "collapse" {
				return true
			}
		case "opacity":
			if f, err := strconv.ParseFloat(v, 64); err == nil && f <= 0 {
				return true
			}
		case "width", "height":
			if v == "0" || v == "0px" {
				return true
			}
		}
	}
	return false
}
