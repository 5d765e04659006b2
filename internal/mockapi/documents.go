package mockapi

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type document map[string]any

// collection is an insertion-ordered set of JSON documents.
type collection struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]document
}

func newCollection() *collection {
	return &collection{docs: map[string]document{}}
}

func (c *collection) list() []document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, maps.Clone(c.docs[id]))
	}
	return out
}

func (c *collection) get(id string) (document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(doc), true
}

func (c *collection) create(fields document) document {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	doc := maps.Clone(fields)
	if doc == nil {
		doc = document{}
	}
	doc["_id"] = uuid.NewString()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc["_id"].(string)] = doc
	c.order = append(c.order, doc["_id"].(string))
	return maps.Clone(doc)
}

func (c *collection) update(id string, fields document) (document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	for k, v := range fields {
		if k == "_id" || k == "createdAt" || k == "updatedAt" {
			continue
		}
		doc[k] = v
	}
	doc["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	return maps.Clone(doc), true
}

func (c *collection) delete(id string) (document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return doc, true
}
