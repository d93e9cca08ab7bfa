package trigger

import (
	"container/list"
	"regexp"
	"sync"
)

// regexCache is a bounded LRU of compiled patterns. Compilation is the
// expensive part of matching; entries are shared across communities since the
// key is the pattern text itself.
type regexCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key string
	re  *regexp.Regexp
}

func newRegexCache(capacity int) *regexCache {
	return &regexCache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
	}
}

// compile returns the compiled regex for the pattern, case-insensitive,
// consulting the cache first. Compilation errors are returned to the caller.
func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[pattern]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).re, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}

	c.items[pattern] = c.ll.PushFront(&cacheEntry{key: pattern, re: re})
	if c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	return re, nil
}

// len reports the number of cached regexes.
func (c *regexCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
