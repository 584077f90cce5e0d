package loader

import "container/list"

// chunkCache is a least-recently-used map from chunk index to chunk bytes.
// It is not safe for concurrent use; Loader guards it.
type chunkCache struct {
	max   int
	order *list.List // front = most recently used
	items map[int64]*list.Element
}

type cacheEntry struct {
	index int64
	data  []byte
}

func newChunkCache(max int) *chunkCache {
	return &chunkCache{
		max:   max,
		order: list.New(),
		items: make(map[int64]*list.Element),
	}
}

func (c *chunkCache) get(index int64) ([]byte, bool) {
	el, ok := c.items[index]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// put stores data and returns the indices it evicted.
func (c *chunkCache) put(index int64, data []byte) []int64 {
	if el, ok := c.items[index]; ok {
		el.Value.(*cacheEntry).data = data
		c.order.MoveToFront(el)
		return nil
	}
	c.items[index] = c.order.PushFront(&cacheEntry{index: index, data: data})

	var evicted []int64
	for c.max > 0 && c.order.Len() > c.max {
		back := c.order.Back()
		entry := back.Value.(*cacheEntry)
		c.order.Remove(back)
		delete(c.items, entry.index)
		evicted = append(evicted, entry.index)
	}
	return evicted
}

func (c *chunkCache) len() int {
	return c.order.Len()
}

func (c *chunkCache) reset() {
	c.order.Init()
	c.items = make(map[int64]*list.Element)
}
