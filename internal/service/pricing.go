// Package service contains the business logic layer.
//
// This file implements the pricing service: the single entry point every
// caller (HTTP API, checkout, subscription panel) uses to price asset counts
// and mid-cycle changes.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/cache"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/metrics"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
)

// =============================================================================
// Interface Definition
// =============================================================================

// PricingService defines pricing operations.
type PricingService interface {
	// Tiers returns the tier table quotes are computed against.
	Tiers() *pricing.TierTable

	// Quote prices assetCount for one month.
	// Returns EINVALID wrapping domain.ErrInvalidQuantity for counts below 1
	// or above the configured maximum.
	Quote(ctx context.Context, assetCount int64) (domain.PricingQuote, error)

	// PeriodQuote prices assetCount for one full period of cycle.
	PeriodQuote(ctx context.Context, assetCount int64, cycle domain.BillingCycle) (domain.PricingQuote, error)

	// Prorate prices a mid-cycle change from req.OldAssetCount to
	// req.NewAssetCount. Period totals are prorated, so an annual change is
	// charged against the discounted annual price.
	Prorate(ctx context.Context, req ProrationRequest) (domain.ProrationQuote, error)
}

// ProrationRequest is the input to PricingService.Prorate.
type ProrationRequest struct {
	OldAssetCount int64
	NewAssetCount int64
	BillingCycle  domain.BillingCycle
	DaysRemaining int64
}

// PricingConfig holds deployment policy for the pricing service.
type PricingConfig struct {
	// MaxAssetCount rejects larger counts as invalid. Zero means no limit.
	MaxAssetCount int64
}

// =============================================================================
// Implementation
// =============================================================================

type pricingService struct {
	calc   *pricing.Calculator
	cache  cache.QuoteCache
	config PricingConfig
	logger *slog.Logger
}

// NewPricingService creates a new PricingService. A nil quoteCache disables
// caching.
func NewPricingService(table *pricing.TierTable, quoteCache cache.QuoteCache, config PricingConfig, logger *slog.Logger) PricingService {
	if quoteCache == nil {
		quoteCache = cache.Noop{}
	}
	return &pricingService{
		calc:   pricing.NewCalculator(table),
		cache:  quoteCache,
		config: config,
		logger: logger,
	}
}

func (s *pricingService) Tiers() *pricing.TierTable {
	return s.calc.Table()
}

// Quote prices assetCount, consulting the cache first.
func (s *pricingService) Quote(ctx context.Context, assetCount int64) (domain.PricingQuote, error) {
	const op = "pricing.quote"

	if s.config.MaxAssetCount > 0 && assetCount > s.config.MaxAssetCount {
		metrics.QuoteRejected("above_maximum")
		return domain.PricingQuote{}, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
			"asset count exceeds the maximum this plan supports")
	}

	key := cache.QuoteKey(s.calc.Table().Version(), assetCount)
	if assetCount > 0 {
		quote, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			metrics.CacheLookup("hit")
			metrics.QuoteComputed(quote.MatchedTierIndex)
			return quote, nil
		case errors.Is(err, cache.ErrMiss):
			metrics.CacheLookup("miss")
		default:
			metrics.CacheLookup("error")
			s.logger.Warn("quote cache lookup failed", "error", err, "asset_count", assetCount)
		}
	}

	quote, err := s.calc.ComputeQuote(assetCount)
	if err != nil {
		metrics.QuoteRejected("invalid_quantity")
		return domain.PricingQuote{}, err
	}
	metrics.QuoteComputed(quote.MatchedTierIndex)

	if err := s.cache.Set(ctx, key, quote); err != nil {
		s.logger.Warn("quote cache store failed", "error", err, "asset_count", assetCount)
	}
	return quote, nil
}

func (s *pricingService) PeriodQuote(ctx context.Context, assetCount int64, cycle domain.BillingCycle) (domain.PricingQuote, error) {
	quote, err := s.Quote(ctx, assetCount)
	if err != nil {
		return domain.PricingQuote{}, err
	}
	return s.calc.PeriodQuote(quote, cycle)
}

func (s *pricingService) Prorate(ctx context.Context, req ProrationRequest) (domain.ProrationQuote, error) {
	const op = "pricing.prorate"

	if !req.BillingCycle.Valid() {
		metrics.QuoteRejected("invalid_cycle")
		return domain.ProrationQuote{}, domain.Wrap(domain.ErrInvalidCycle, domain.EINVALID, op,
			"billing cycle must be \"monthly\" or \"annual\"")
	}

	oldQuote, err := s.PeriodQuote(ctx, req.OldAssetCount, req.BillingCycle)
	if err != nil {
		return domain.ProrationQuote{}, err
	}
	newQuote, err := s.PeriodQuote(ctx, req.NewAssetCount, req.BillingCycle)
	if err != nil {
		return domain.ProrationQuote{}, err
	}

	proration, err := pricing.ComputeProration(oldQuote, newQuote, req.BillingCycle, req.DaysRemaining)
	if err != nil {
		metrics.QuoteRejected("invalid_proration")
		return domain.ProrationQuote{}, err
	}
	metrics.ProrationComputed(proration.BillingCycle, proration.Direction)
	return proration, nil
}
