package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/worker"
)

const failUpdateTimeout = 10 * time.Second

// ApplyAdjustmentHandler processes jobs that hand a prorated charge or credit
// to the billing provider.
type ApplyAdjustmentHandler struct {
	adjustments service.AdjustmentStore
	billing     billing.Service
	logger      *slog.Logger
}

// NewApplyAdjustmentHandler creates a new handler for billing adjustment jobs.
func NewApplyAdjustmentHandler(
	adjustments service.AdjustmentStore,
	billingService billing.Service,
	logger *slog.Logger,
) *ApplyAdjustmentHandler {
	return &ApplyAdjustmentHandler{
		adjustments: adjustments,
		billing:     billingService,
		logger:      logger,
	}
}

// Type returns the job type identifier.
func (h *ApplyAdjustmentHandler) Type() string {
	return worker.JobTypeApplyBillingAdjustment
}

// Handle executes the billing adjustment job.
//
// Only pending adjustments are sent. A retried job that finds the adjustment
// already submitted or finished does nothing, and the provider calls carry
// idempotency keys, so a crash between the provider call and the status
// update cannot charge twice.
func (h *ApplyAdjustmentHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ApplyBillingAdjustmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	adj, err := h.adjustments.Get(ctx, p.AdjustmentID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("adjustment not found: %w", err))
		}
		return fmt.Errorf("fetch adjustment: %w", err)
	}

	logger := h.logger.With(
		"adjustment_id", adj.ID,
		"organization_id", adj.OrganizationID,
		"direction", adj.Direction,
		"prorated_minor_units", adj.ProratedMinorUnits,
	)

	if adj.Status != domain.AdjustmentStatusPending {
		logger.Info("Adjustment already processed", "status", adj.Status)
		return nil
	}
	if adj.StripeCustomerID == "" {
		return h.fail(ctx, adj, "", worker.NewPermanentError(fmt.Errorf("adjustment has no billing customer")))
	}

	result, err := h.billing.ApplyAdjustment(ctx, billing.AdjustmentParams{
		AdjustmentID:     adj.ID,
		CustomerID:       adj.StripeCustomerID,
		AmountMinorUnits: adj.ProratedMinorUnits,
		Currency:         adj.Currency,
		Description:      describe(adj),
	})
	if err != nil {
		if billing.IsPermanent(err) {
			reference := ""
			if result != nil {
				reference = result.Reference
			}
			return h.fail(ctx, adj, reference, worker.NewPermanentError(err))
		}
		// Provider unavailable or rate limited. Retry unless this was the
		// last attempt, in which case the ledger must not stay pending.
		if attempt, ok := worker.AttemptFromContext(ctx); ok && attempt.Final() {
			return h.fail(ctx, adj, "", worker.NewPermanentError(
				fmt.Errorf("apply adjustment: attempts exhausted: %w", err)))
		}
		return fmt.Errorf("apply adjustment: %w", err)
	}

	if _, err := h.adjustments.Transition(ctx, adj.ID, domain.AdjustmentStatusSubmitted, result.Reference, ""); err != nil {
		return fmt.Errorf("mark adjustment submitted: %w", err)
	}
	logger.Info("Adjustment submitted", "provider_reference", result.Reference, "settled", result.Settled)

	if result.Settled {
		if _, err := h.adjustments.Transition(ctx, adj.ID, domain.AdjustmentStatusSettled, result.Reference, ""); err != nil {
			return fmt.Errorf("mark adjustment settled: %w", err)
		}
	}

	return nil
}

// fail records a permanent failure on the adjustment and returns jobErr.
// The update runs detached from ctx so an expired job deadline does not
// prevent it.
func (h *ApplyAdjustmentHandler) fail(ctx context.Context, adj *domain.BillingAdjustment, reference string, jobErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failUpdateTimeout)
	defer cancel()

	if _, err := h.adjustments.Transition(ctx, adj.ID, domain.AdjustmentStatusFailed, reference, jobErr.Error()); err != nil {
		h.logger.Error("Failed to mark adjustment failed", "adjustment_id", adj.ID, "error", err)
		return fmt.Errorf("mark adjustment failed: %w", err)
	}
	h.logger.Warn("Adjustment failed", "adjustment_id", adj.ID, "error", jobErr)
	return jobErr
}

func describe(adj *domain.BillingAdjustment) string {
	kind := "Prorated charge"
	if adj.Direction == domain.DirectionCredit {
		kind = "Prorated credit"
	}
	return fmt.Sprintf("%s: %d to %d assets, %d days remaining in %s cycle",
		kind, adj.OldAssetCount, adj.NewAssetCount, adj.DaysRemaining, adj.BillingCycle)
}
