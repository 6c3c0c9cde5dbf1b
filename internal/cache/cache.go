// Package cache memoizes pricing quotes.
//
// Quotes are a pure function of the tier table and the asset count, so an
// entry keyed on (table version, count) never goes stale; publishing a new
// table changes the version and old entries simply stop being read.
package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// QuoteCache stores computed quotes.
type QuoteCache interface {
	// Get returns the cached quote or ErrMiss.
	Get(ctx context.Context, key string) (domain.PricingQuote, error)
	Set(ctx context.Context, key string, quote domain.PricingQuote) error
}

// QuoteKey builds the cache key for a count priced against a table version.
func QuoteKey(tableVersion string, assetCount int64) string {
	return "quote:" + tableVersion + ":" + strconv.FormatInt(assetCount, 10)
}

// Noop never stores anything. Used when caching is disabled.
type Noop struct{}

func (Noop) Get(context.Context, string) (domain.PricingQuote, error) {
	return domain.PricingQuote{}, ErrMiss
}

func (Noop) Set(context.Context, string, domain.PricingQuote) error {
	return nil
}
