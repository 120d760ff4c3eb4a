package model

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region cached
// DefaultCacheSize bounds the prediction cache when no size is configured.
const DefaultCacheSize = 4096

// Cached memoizes an underlying model's predictions by feature vector.
type Cached struct {
	inner Model
	cache *lru.Cache[ownership.Features, ownership.Prediction]
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner Model, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[ownership.Features, ownership.Prediction](size)
	if err != nil {
		return nil, fmt.Errorf("new prediction cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Predict(f ownership.Features) ownership.Prediction {
	if p, ok := c.cache.Get(f); ok {
		return p
	}
	p := c.inner.Predict(f)
	c.cache.Add(f, p)
	return p
}

func (c *Cached) Name() string { return c.inner.Name() }

// Len returns the number of cached predictions.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge drops every cached prediction, e.g. after a model rollback.
func (c *Cached) Purge() { c.cache.Purge() }

// #endregion cached
