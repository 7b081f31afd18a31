package observer

import "github.com/hazyhaar/savedtabs/pagewatch/scan"

type handledKey struct {
	id  string
	cat scan.Category
}

// handledSet records which nodes already carry interception handlers, one
// entry per node and category. It lives as long as the observer and is
// pruned after every scan to the nodes that scan accepted, so entries for
// unmounted nodes do not accumulate.
type handledSet struct {
	m map[handledKey]struct{}
}

func newHandledSet() *handledSet {
	return &handledSet{m: make(map[handledKey]struct{})}
}

// fresh returns the handles not yet installed. Handles without a node id
// cannot be addressed in the page and are dropped.
func (h *handledSet) fresh(hs []scan.Handle) []scan.Handle {
	var out []scan.Handle
	for _, x := range hs {
		if x.NodeID == "" {
			continue
		}
		if _, ok := h.m[handledKey{x.NodeID, x.Category}]; !ok {
			out = append(out, x)
		}
	}
	return out
}

func (h *handledSet) mark(hs []scan.Handle) {
	for _, x := range hs {
		h.m[handledKey{x.NodeID, x.Category}] = struct{}{}
	}
}

// retain drops every entry not present in hs.
func (h *handledSet) retain(hs []scan.Handle) {
	keep := make(map[handledKey]struct{}, len(hs))
	for _, x := range hs {
		k := handledKey{x.NodeID, x.Category}
		if _, ok := h.m[k]; ok {
			keep[k] = struct{}{}
		}
	}
	h.m = keep
}

func (h *handledSet) reset() {
	h.m = make(map[handledKey]struct{})
}

func (h *handledSet) len() int { return len(h.m) }
