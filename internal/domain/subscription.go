// Package domain contains core business types and interfaces.
//
// This file defines the subscription record as read from the external
// record store, and the asset-change preview derived from it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of an organization's subscription.
// The lifecycle itself lives in the billing provider; we only read it.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusFree     SubscriptionStatus = "free"
)

// Subscription is the record store's view of an organization's plan.
type Subscription struct {
	OrganizationID       uuid.UUID
	AssetCount           int64
	BillingCycle         BillingCycle
	Status               SubscriptionStatus
	CurrentPeriodEnd     time.Time
	StripeCustomerID     string
	StripeSubscriptionID string
}

// IsBillable returns true if mid-cycle changes should be sent to the billing provider.
func (s *Subscription) IsBillable() bool {
	if s.StripeCustomerID == "" {
		return false
	}
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusPastDue
}

// AssetChangePreview describes what changing an organization's asset count
// would cost right now.
type AssetChangePreview struct {
	Subscription Subscription
	CurrentQuote PricingQuote
	NewQuote     PricingQuote
	Proration    ProrationQuote
	// Billable is false when the provider would not be asked to move money
	// (trial, free plan, no customer, or a zero proration).
	Billable bool
}
