// Package domain contains core business types and interfaces.
//
// This file defines the billing adjustment: our outbox record of a proration
// handed to the billing provider. The provider's ledger remains the system of
// record for what was actually charged.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Adjustment Status
// =============================================================================

// ErrAdjustmentFinal is matched by transitions refused because the
// adjustment is already terminal.
var ErrAdjustmentFinal = errors.New("adjustment already final")

// AdjustmentStatus tracks an adjustment through the billing provider.
type AdjustmentStatus string

const (
	AdjustmentStatusPending   AdjustmentStatus = "pending"
	AdjustmentStatusSubmitted AdjustmentStatus = "submitted"
	AdjustmentStatusSettled   AdjustmentStatus = "settled"
	AdjustmentStatusFailed    AdjustmentStatus = "failed"
	AdjustmentStatusSkipped   AdjustmentStatus = "skipped"
)

// CanTransitionTo checks if the adjustment can move to the target status.
//
// Valid transitions:
//   - pending -> submitted (provider accepted the charge or credit)
//   - pending -> skipped (nothing to send: zero proration or non-billable plan)
//   - pending -> failed (permanent provider error)
//   - submitted -> settled (payment webhook)
//   - submitted -> failed (payment failure webhook)
func (s AdjustmentStatus) CanTransitionTo(target AdjustmentStatus) bool {
	switch s {
	case AdjustmentStatusPending:
		return target == AdjustmentStatusSubmitted ||
			target == AdjustmentStatusSkipped ||
			target == AdjustmentStatusFailed
	case AdjustmentStatusSubmitted:
		return target == AdjustmentStatusSettled || target == AdjustmentStatusFailed
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s AdjustmentStatus) IsTerminal() bool {
	return s == AdjustmentStatusSettled || s == AdjustmentStatusFailed || s == AdjustmentStatusSkipped
}

// =============================================================================
// Billing Adjustment
// =============================================================================

// BillingAdjustment records one mid-cycle asset change and its proration.
type BillingAdjustment struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	StripeCustomerID   string
	OldAssetCount      int64
	NewAssetCount      int64
	BillingCycle       BillingCycle
	DaysRemaining      int64
	DeltaMinorUnits    int64
	ProratedMinorUnits int64
	Direction          Direction
	Currency           string
	Status             AdjustmentStatus
	ProviderReference  string
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TransitionTo moves the adjustment to the target status, or returns an
// error and leaves it unchanged.
func (a *BillingAdjustment) TransitionTo(target AdjustmentStatus) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot transition adjustment from %s to %s", ErrAdjustmentFinal, a.Status, target)
	}
	if !a.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition adjustment from %s to %s", a.Status, target)
	}
	a.Status = target
	return nil
}

// NewBillingAdjustment builds a pending adjustment from a preview.
func NewBillingAdjustment(preview *AssetChangePreview, currency string) *BillingAdjustment {
	return &BillingAdjustment{
		ID:                 uuid.New(),
		OrganizationID:     preview.Subscription.OrganizationID,
		StripeCustomerID:   preview.Subscription.StripeCustomerID,
		OldAssetCount:      preview.CurrentQuote.AssetCount,
		NewAssetCount:      preview.NewQuote.AssetCount,
		BillingCycle:       preview.Proration.BillingCycle,
		DaysRemaining:      preview.Proration.DaysRemainingInPeriod,
		DeltaMinorUnits:    preview.Proration.DeltaMinorUnits,
		ProratedMinorUnits: preview.Proration.ProratedMinorUnits,
		Direction:          preview.Proration.Direction,
		Currency:           currency,
		Status:             AdjustmentStatusPending,
	}
}
