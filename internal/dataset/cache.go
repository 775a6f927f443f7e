package dataset

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// sampleCache keeps decoded, resized samples by path. A nil cache never hits.
type sampleCache struct {
	items *lru.Cache
}

func newSampleCache(size int) (*sampleCache, error) {
	if size <= 0 {
		return nil, nil
	}
	items, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: create sample cache")
	}
	return &sampleCache{items: items}, nil
}

func (c *sampleCache) get(path string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	return c.items.Get(path)
}

func (c *sampleCache) add(path string, v interface{}) {
	if c == nil {
		return
	}
	c.items.Add(path, v)
}

// Len returns the number of cached samples.
func (c *sampleCache) Len() int {
	if c == nil {
		return 0
	}
	return c.items.Len()
}
