package cache

import (
	"sort"
)

// Tag labels cached reads by the kind of entity they hold. Mutations name the
// tags they make stale.
type Tag string

const (
	TagFurniture         Tag = "Furniture"
	TagSupplier          Tag = "Supplier"
	TagRessource         Tag = "Ressource"
	TagRessourceCategory Tag = "RessourceCategory"
	TagFurnitureCategory Tag = "FurnitureCategory"
	TagUser              Tag = "User"
	TagAuth              Tag = "Auth"
)

// Key identifies one cache entry.
type Key struct {
	Endpoint string
	Arg      string
}

func (k Key) String() string {
	if k.Arg == "" {
		return k.Endpoint
	}
	return k.Endpoint + "(" + k.Arg + ")"
}

// TagIndex is the bipartite table between tags and the entries carrying
// them. It is not safe for concurrent use; Cache guards it.
type TagIndex struct {
	byTag map[Tag]map[Key]struct{}
	byKey map[Key]map[Tag]struct{}
}

func NewTagIndex() *TagIndex {
	return &TagIndex{
		byTag: map[Tag]map[Key]struct{}{},
		byKey: map[Key]map[Tag]struct{}{},
	}
}

func (ix *TagIndex) Add(key Key, tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	keyTags, ok := ix.byKey[key]
	if !ok {
		keyTags = map[Tag]struct{}{}
		ix.byKey[key] = keyTags
	}

	for _, tag := range tags {
		keys, ok := ix.byTag[tag]
		if !ok {
			keys = map[Key]struct{}{}
			ix.byTag[tag] = keys
		}
		keys[key] = struct{}{}
		keyTags[tag] = struct{}{}
	}
}

func (ix *TagIndex) Remove(key Key) {
	for tag := range ix.byKey[key] {
		keys := ix.byTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(ix.byTag, tag)
		}
	}
	delete(ix.byKey, key)
}

// Keys returns the union of entries carrying any of tags, in a stable order.
func (ix *TagIndex) Keys(tags ...Tag) []Key {
	seen := map[Key]struct{}{}
	for _, tag := range tags {
		for key := range ix.byTag[tag] {
			seen[key] = struct{}{}
		}
	}

	out := make([]Key, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Endpoint != out[j].Endpoint {
			return out[i].Endpoint < out[j].Endpoint
		}
		return out[i].Arg < out[j].Arg
	})

	return out
}

func (ix *TagIndex) Tags(key Key) []Tag {
	out := make([]Tag, 0, len(ix.byKey[key]))
	for tag := range ix.byKey[key] {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ix *TagIndex) Len() int {
	return len(ix.byKey)
}
