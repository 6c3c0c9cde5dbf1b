package cache

import (
	"context"
	"sync"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// DefaultMemoryEntries bounds a MemoryCache created with size <= 0.
const DefaultMemoryEntries = 10000

// MemoryCache is a bounded in-process cache. When full, the oldest entry is
// evicted first.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]domain.PricingQuote
	order   []string
}

// NewMemoryCache creates a MemoryCache holding at most size entries.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	return &MemoryCache{
		max:     size,
		entries: make(map[string]domain.PricingQuote, size),
		order:   make([]string, 0, size),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.PricingQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	quote, ok := c.entries[key]
	if !ok {
		return domain.PricingQuote{}, ErrMiss
	}
	return cloneQuote(quote), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, quote domain.PricingQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cloneQuote(quote)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cloneQuote copies the slice and pointer fields so callers cannot mutate
// a cached entry.
func cloneQuote(q domain.PricingQuote) domain.PricingQuote {
	out := q
	if q.Breakdown != nil {
		out.Breakdown = make([]domain.TierBreakdownRow, len(q.Breakdown))
		copy(out.Breakdown, q.Breakdown)
	}
	if q.PotentialSavings != nil {
		s := *q.PotentialSavings
		out.PotentialSavings = &s
	}
	return out
}
