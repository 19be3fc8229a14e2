package pagination

import "github.com/Sternrassler/gqlfetch/pkg/record"

// Collection is the keyed accumulator of a pagination run. Keys keep the
// position of their first insertion; a later item with the same key
// replaces the earlier one.
type Collection struct {
	keys  []string
	items map[string]*record.Record
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{items: map[string]*record.Record{}}
}

// Put stores item under key.
func (c *Collection) Put(key string, item *record.Record) {
	if _, exists := c.items[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.items[key] = item
}

// Get returns the item stored under key.
func (c *Collection) Get(key string) (*record.Record, bool) {
	if c == nil {
		return nil, false
	}
	item, ok := c.items[key]
	return item, ok
}

// Len returns the number of distinct keys.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns the keys in first-insertion order.
func (c *Collection) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Records returns the items in key order.
func (c *Collection) Records() []*record.Record {
	out := make([]*record.Record, 0, c.Len())
	if c == nil {
		return out
	}
	for _, k := range c.keys {
		out = append(out, c.items[k])
	}
	return out
}

// Map returns the items keyed by their key.
func (c *Collection) Map() map[string]*record.Record {
	out := make(map[string]*record.Record, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the collection as an object keyed in insertion order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	obj := record.New()
	for _, k := range c.Keys() {
		obj.Set(k, c.items[k])
	}
	return obj.MarshalJSON()
}
