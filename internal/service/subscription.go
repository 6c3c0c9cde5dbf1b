// Package service contains the business logic layer.
//
// This file implements the subscription service: previewing and applying
// mid-cycle asset count changes, and starting checkout for new plans.
// The record store owns the subscription; this service prices changes to it
// and records what must be charged or credited.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/metrics"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/subscriptionapi"
)

// RecordStore is the subset of the subscription record store client the
// service needs.
type RecordStore interface {
	GetSubscription(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID) (*domain.Subscription, error)
	UpdateAssetCount(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, assetCount int64) (*domain.Subscription, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService defines operations on an organization's subscription.
type SubscriptionService interface {
	// PreviewAssetChange prices moving the organization to newAssetCount at now.
	// Days remaining come from the record store's current period end.
	PreviewAssetChange(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, newAssetCount int64, now time.Time) (*domain.AssetChangePreview, error)

	// ApplyAssetChange updates the record store and records the resulting
	// adjustment. Billable charges and credits are queued for the billing
	// provider; everything else is recorded as skipped.
	ApplyAssetChange(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, newAssetCount int64, now time.Time) (*AssetChangeResult, error)

	// Checkout starts a hosted checkout for a new subscription and returns
	// the URL to send the user to.
	Checkout(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, req CheckoutRequest) (string, error)

	// ListAdjustments returns the organization's billing adjustments.
	ListAdjustments(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, limit, offset int32) ([]domain.BillingAdjustment, error)

	// RecordPaymentOutcome settles or fails a submitted adjustment when the
	// billing provider reports on its invoice.
	RecordPaymentOutcome(ctx context.Context, adjustmentID uuid.UUID, paid bool, reference, reason string) error
}

// AssetChangeResult is the outcome of ApplyAssetChange.
type AssetChangeResult struct {
	Subscription domain.Subscription
	Preview      *domain.AssetChangePreview
	// Adjustment is nil when the asset count did not change.
	Adjustment *domain.BillingAdjustment
}

// CheckoutRequest describes the plan a new subscriber chose.
type CheckoutRequest struct {
	AssetCount   int64
	BillingCycle domain.BillingCycle
}

// CheckoutConfig holds the hosted checkout settings.
type CheckoutConfig struct {
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	records     RecordStore
	pricing     PricingService
	adjustments AdjustmentStore
	billing     billing.Service
	checkout    CheckoutConfig
	logger      *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(
	records RecordStore,
	pricingService PricingService,
	adjustments AdjustmentStore,
	billingService billing.Service,
	checkout CheckoutConfig,
	logger *slog.Logger,
) SubscriptionService {
	return &subscriptionService{
		records:     records,
		pricing:     pricingService,
		adjustments: adjustments,
		billing:     billingService,
		checkout:    checkout,
		logger:      logger,
	}
}

func (s *subscriptionService) PreviewAssetChange(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, newAssetCount int64, now time.Time) (*domain.AssetChangePreview, error) {
	sub, err := s.records.GetSubscription(ctx, session, orgID)
	metrics.RecordStoreRequest("get_subscription", err)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, sub, newAssetCount, now)
}

func (s *subscriptionService) preview(ctx context.Context, sub *domain.Subscription, newAssetCount int64, now time.Time) (*domain.AssetChangePreview, error) {
	cycle := sub.BillingCycle

	// A subscription with no assets yet prorates up from nothing.
	current := domain.PricingQuote{AssetCount: sub.AssetCount}
	if sub.AssetCount > 0 {
		var err error
		current, err = s.pricing.PeriodQuote(ctx, sub.AssetCount, cycle)
		if err != nil {
			return nil, err
		}
	}

	next, err := s.pricing.PeriodQuote(ctx, newAssetCount, cycle)
	if err != nil {
		return nil, err
	}

	days := pricing.DaysRemaining(sub.CurrentPeriodEnd, now, cycle)
	proration, err := pricing.ComputeProration(current, next, cycle, days)
	if err != nil {
		return nil, err
	}
	metrics.ProrationComputed(proration.BillingCycle, proration.Direction)

	return &domain.AssetChangePreview{
		Subscription: *sub,
		CurrentQuote: current,
		NewQuote:     next,
		Proration:    proration,
		Billable:     sub.IsBillable() && proration.Direction != domain.DirectionNone,
	}, nil
}

func (s *subscriptionService) ApplyAssetChange(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, newAssetCount int64, now time.Time) (*AssetChangeResult, error) {
	const op = "subscription.apply_asset_change"

	sub, err := s.records.GetSubscription(ctx, session, orgID)
	metrics.RecordStoreRequest("get_subscription", err)
	if err != nil {
		return nil, err
	}

	preview, err := s.preview(ctx, sub, newAssetCount, now)
	if err != nil {
		return nil, err
	}

	if newAssetCount == sub.AssetCount {
		return &AssetChangeResult{Subscription: *sub, Preview: preview}, nil
	}

	updated, err := s.records.UpdateAssetCount(ctx, session, orgID, newAssetCount)
	metrics.RecordStoreRequest("update_asset_count", err)
	if err != nil {
		return nil, err
	}

	adj := domain.NewBillingAdjustment(preview, s.pricing.Tiers().Currency())
	if !preview.Billable {
		if err := adj.TransitionTo(domain.AdjustmentStatusSkipped); err != nil {
			return nil, domain.Internal(err, op, "failed to record billing adjustment")
		}
	}

	if err := s.adjustments.Create(ctx, adj); err != nil {
		// The record store already holds the new count; the proration is
		// lost unless someone replays it from this log line.
		s.logger.Error("asset count changed but adjustment was not recorded",
			"error", err,
			"op", op,
			"organization_id", orgID,
			"old_asset_count", sub.AssetCount,
			"new_asset_count", newAssetCount,
			"prorated_minor_units", preview.Proration.ProratedMinorUnits,
		)
		return nil, err
	}

	s.logger.Info("asset count changed",
		"organization_id", orgID,
		"old_asset_count", sub.AssetCount,
		"new_asset_count", newAssetCount,
		"direction", adj.Direction,
		"prorated_minor_units", adj.ProratedMinorUnits,
		"adjustment_id", adj.ID,
		"adjustment_status", adj.Status,
	)

	return &AssetChangeResult{
		Subscription: *updated,
		Preview:      preview,
		Adjustment:   adj,
	}, nil
}

func (s *subscriptionService) Checkout(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, req CheckoutRequest) (string, error) {
	const op = "subscription.checkout"

	if !req.BillingCycle.Valid() {
		return "", domain.Wrap(domain.ErrInvalidCycle, domain.EINVALID, op,
			"billing cycle must be \"monthly\" or \"annual\"")
	}

	sub, err := s.records.GetSubscription(ctx, session, orgID)
	metrics.RecordStoreRequest("get_subscription", err)
	var customerID string
	switch {
	case err == nil:
		if sub.Status == domain.SubscriptionStatusActive || sub.Status == domain.SubscriptionStatusPastDue {
			return "", domain.Conflict(op, "organization already has a paid subscription")
		}
		customerID = sub.StripeCustomerID
	case domain.ErrorCode(err) == domain.ENOTFOUND:
		// First subscription for this organization.
	default:
		return "", err
	}

	quote, err := s.pricing.PeriodQuote(ctx, req.AssetCount, req.BillingCycle)
	if err != nil {
		return "", err
	}

	url, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		OrganizationID:        orgID,
		CustomerID:            customerID,
		AssetCount:            req.AssetCount,
		BillingCycle:          req.BillingCycle,
		PeriodTotalMinorUnits: quote.TotalMinorUnits,
		Currency:              s.pricing.Tiers().Currency(),
		ProductName:           s.checkout.ProductName,
		SuccessURL:            s.checkout.SuccessURL,
		CancelURL:             s.checkout.CancelURL,
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", "error", err, "op", op, "organization_id", orgID)
		if billing.IsPermanent(err) {
			return "", domain.Wrap(err, domain.EPAYMENT, op, "the payment provider rejected the checkout")
		}
		return "", domain.Unavailable(err, op, "the payment provider is unavailable")
	}

	metrics.CheckoutCreated(req.BillingCycle)
	s.logger.Info("checkout session created",
		"organization_id", orgID,
		"asset_count", req.AssetCount,
		"billing_cycle", req.BillingCycle,
		"period_total_minor_units", quote.TotalMinorUnits,
	)
	return url, nil
}

func (s *subscriptionService) ListAdjustments(ctx context.Context, session subscriptionapi.Session, orgID uuid.UUID, limit, offset int32) ([]domain.BillingAdjustment, error) {
	// The record store decides whether this session may see the organization.
	_, err := s.records.GetSubscription(ctx, session, orgID)
	metrics.RecordStoreRequest("get_subscription", err)
	if err != nil {
		return nil, err
	}
	return s.adjustments.ListByOrganization(ctx, orgID, limit, offset)
}

func (s *subscriptionService) RecordPaymentOutcome(ctx context.Context, adjustmentID uuid.UUID, paid bool, reference, reason string) error {
	target := domain.AdjustmentStatusSettled
	if !paid {
		target = domain.AdjustmentStatusFailed
	}
	_, err := s.adjustments.Transition(ctx, adjustmentID, target, reference, reason)
	return err
}
