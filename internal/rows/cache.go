package rows

import (
	"container/list"

	"tabsense/internal/model"
)

// rowCache is a least-recently-viewed cache of resolved rows. It is owned by
// one goroutine and takes no locks.
type rowCache struct {
	capacity  int
	items     map[int]*list.Element
	evictList *list.List

	hits, misses int64
}

func newRowCache(capacity int) *rowCache {
	if capacity < 1 {
		capacity = 1
	}
	return &rowCache{
		capacity:  capacity,
		items:     make(map[int]*list.Element, capacity),
		evictList: list.New(),
	}
}

func (c *rowCache) get(i int) (model.Row, bool) {
	if ent, ok := c.items[i]; ok {
		c.hits++
		c.evictList.MoveToFront(ent)
		return ent.Value.(model.Row), true
	}
	c.misses++
	return model.Row{}, false
}

func (c *rowCache) contains(i int) bool {
	_, ok := c.items[i]
	return ok
}

func (c *rowCache) set(r model.Row) {
	if ent, ok := c.items[r.Index]; ok {
		ent.Value = r
		c.evictList.MoveToFront(ent)
		return
	}
	c.items[r.Index] = c.evictList.PushFront(r)
	for c.evictList.Len() > c.capacity {
		back := c.evictList.Back()
		c.evictList.Remove(back)
		delete(c.items, back.Value.(model.Row).Index)
	}
}

func (c *rowCache) len() int { return c.evictList.Len() }
