package indicator

type cacheKey struct {
	state State
	label string
}

// cache memoises rendered indicators. The key space is bounded by the label
// cap (two states times cap+2 labels), so entries are never evicted.
type cache struct {
	m    map[cacheKey]Indicator
	hits int
}

func newCache() *cache {
	return &cache{m: make(map[cacheKey]Indicator)}
}

func (c *cache) get(k cacheKey) (Indicator, bool) {
	ind, ok := c.m[k]
	if ok {
		c.hits++
	}
	return ind, ok
}

func (c *cache) put(k cacheKey, ind Indicator) {
	c.m[k] = ind
}
