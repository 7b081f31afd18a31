package scan

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Snapshot is the wire form of an in-page element snapshot. The page emits
// only elements matching the main, container or link selectors, each with
// the index of its nearest emitted ancestor, so the tree stays small on long
// feeds while preserving every relation the scan looks at.
type Snapshot struct {
	Location string         `json:"location"`
	Nodes    []SnapshotNode `json:"nodes"`
}

// SnapshotNode is one emitted element.
type SnapshotNode struct {
	ID      string            `json:"id"`
	Parent  int               `json:"parent"` // index into Nodes, -1 for none
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs"`
	Visible bool              `json:"visible"`
}

// DecodeSnapshot parses a JSON snapshot and builds its Document.
func DecodeSnapshot(data []byte) (*Document, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scan: decode snapshot: %w", err)
	}
	return FromSnapshot(s)
}

// FromSnapshot builds a Document. Parents must precede their children.
func FromSnapshot(s Snapshot) (*Document, error) {
	loc, err := url.Parse(s.Location)
	if err != nil {
		return nil, fmt.Errorf("scan: snapshot location: %w", err)
	}

	root := &Node{Tag: "#document", Visible: true}
	nodes := make([]*Node, len(s.Nodes))
	for i, sn := range s.Nodes {
		n := &Node{ID: sn.ID, Tag: sn.Tag, Attrs: sn.Attrs, Visible: sn.Visible}
		if n.Attrs == nil {
			n.Attrs = map[string]string{}
		}
		switch {
		case sn.Parent < 0:
			root.AppendChild(n)
		case sn.Parent >= i:
			return nil, fmt.Errorf("scan: snapshot node %d: parent %d does not precede it", i, sn.Parent)
		default:
			nodes[sn.Parent].AppendChild(n)
		}
		nodes[i] = n
	}
	return &Document{Location: loc, Root: root}, nil
}
