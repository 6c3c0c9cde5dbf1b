// Package service contains the business logic layer.
//
// This file implements the billing adjustment store: the outbox of
// prorations waiting to be, or already, handed to the billing provider.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/metrics"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/repository"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/worker"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AdjustmentStore persists billing adjustments.
type AdjustmentStore interface {
	// Create inserts adj. A pending adjustment is enqueued for the billing
	// provider in the same transaction; any other status is recorded as-is.
	Create(ctx context.Context, adj *domain.BillingAdjustment) error

	// Get returns the adjustment with the given ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.BillingAdjustment, error)

	// ListByOrganization returns the organization's adjustments, newest first.
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int32) ([]domain.BillingAdjustment, error)

	// Transition moves an adjustment to target under a row lock.
	// Moving to the status it already has is a no-op, so replayed webhooks
	// and retried jobs are harmless. Invalid transitions return ECONFLICT.
	Transition(ctx context.Context, id uuid.UUID, target domain.AdjustmentStatus, reference, reason string) (*domain.BillingAdjustment, error)
}

// =============================================================================
// Implementation
// =============================================================================

type adjustmentStore struct {
	db      *sql.DB
	queries *repository.Queries
	logger  *slog.Logger
}

// NewAdjustmentStore creates a Postgres-backed AdjustmentStore.
func NewAdjustmentStore(db *sql.DB, queries *repository.Queries, logger *slog.Logger) AdjustmentStore {
	return &adjustmentStore{
		db:      db,
		queries: queries,
		logger:  logger,
	}
}

func (s *adjustmentStore) Create(ctx context.Context, adj *domain.BillingAdjustment) error {
	const op = "adjustment.create"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	row, err := qtx.CreateBillingAdjustment(ctx, repository.CreateBillingAdjustmentParams{
		ID:                 adj.ID,
		OrganizationID:     adj.OrganizationID,
		StripeCustomerID:   adj.StripeCustomerID,
		OldAssetCount:      adj.OldAssetCount,
		NewAssetCount:      adj.NewAssetCount,
		BillingCycle:       string(adj.BillingCycle),
		DaysRemaining:      adj.DaysRemaining,
		DeltaMinorUnits:    adj.DeltaMinorUnits,
		ProratedMinorUnits: adj.ProratedMinorUnits,
		Direction:          string(adj.Direction),
		Currency:           adj.Currency,
		Status:             string(adj.Status),
	})
	if err != nil {
		s.logger.Error("failed to create billing adjustment", "error", err, "op", op, "organization_id", adj.OrganizationID)
		return domain.Internal(err, op, "failed to record billing adjustment")
	}

	if adj.Status == domain.AdjustmentStatusPending {
		job, err := worker.EnqueueApplyBillingAdjustment(ctx, qtx, adj.ID)
		if err != nil {
			s.logger.Error("failed to enqueue billing adjustment", "error", err, "op", op, "adjustment_id", adj.ID)
			return domain.Internal(err, op, "failed to schedule billing adjustment")
		}
		s.logger.Info("billing adjustment enqueued", "adjustment_id", adj.ID, "job_id", job.ID)
	}

	if err := tx.Commit(); err != nil {
		return domain.Internal(err, op, "failed to commit billing adjustment")
	}

	*adj = adjustmentToDomain(row)
	metrics.AdjustmentRecorded(adj)
	return nil
}

func (s *adjustmentStore) Get(ctx context.Context, id uuid.UUID) (*domain.BillingAdjustment, error) {
	const op = "adjustment.get"

	row, err := s.queries.GetBillingAdjustment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "billing adjustment", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get billing adjustment")
	}
	adj := adjustmentToDomain(row)
	return &adj, nil
}

func (s *adjustmentStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int32) ([]domain.BillingAdjustment, error) {
	const op = "adjustment.list"

	rows, err := s.queries.ListBillingAdjustmentsByOrganization(ctx, repository.ListBillingAdjustmentsByOrganizationParams{
		OrganizationID: orgID,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		s.logger.Error("failed to list billing adjustments", "error", err, "op", op, "organization_id", orgID)
		return nil, domain.Internal(err, op, "failed to list billing adjustments")
	}

	out := make([]domain.BillingAdjustment, 0, len(rows))
	for _, row := range rows {
		out = append(out, adjustmentToDomain(row))
	}
	return out, nil
}

func (s *adjustmentStore) Transition(ctx context.Context, id uuid.UUID, target domain.AdjustmentStatus, reference, reason string) (*domain.BillingAdjustment, error) {
	const op = "adjustment.transition"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	row, err := qtx.GetBillingAdjustmentForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "billing adjustment", id.String())
		}
		return nil, domain.Internal(err, op, "failed to lock billing adjustment")
	}

	adj := adjustmentToDomain(row)
	if adj.Status == target {
		return &adj, nil
	}
	if err := adj.TransitionTo(target); err != nil {
		return nil, domain.Wrap(err, domain.ECONFLICT, op, err.Error())
	}
	if reference != "" {
		adj.ProviderReference = reference
	}
	if reason != "" {
		adj.FailureReason = reason
	}

	if err := qtx.UpdateBillingAdjustmentStatus(ctx, repository.UpdateBillingAdjustmentStatusParams{
		ID:                adj.ID,
		Status:            string(adj.Status),
		ProviderReference: adj.ProviderReference,
		FailureReason:     adj.FailureReason,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update billing adjustment")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit billing adjustment")
	}

	s.logger.Info("billing adjustment updated",
		"adjustment_id", adj.ID,
		"status", adj.Status,
		"provider_reference", adj.ProviderReference,
	)
	metrics.AdjustmentRecorded(&adj)
	return &adj, nil
}

func adjustmentToDomain(row repository.BillingAdjustment) domain.BillingAdjustment {
	return domain.BillingAdjustment{
		ID:                 row.ID,
		OrganizationID:     row.OrganizationID,
		StripeCustomerID:   row.StripeCustomerID,
		OldAssetCount:      row.OldAssetCount,
		NewAssetCount:      row.NewAssetCount,
		BillingCycle:       domain.BillingCycle(row.BillingCycle),
		DaysRemaining:      row.DaysRemaining,
		DeltaMinorUnits:    row.DeltaMinorUnits,
		ProratedMinorUnits: row.ProratedMinorUnits,
		Direction:          domain.Direction(row.Direction),
		Currency:           row.Currency,
		Status:             domain.AdjustmentStatus(row.Status),
		ProviderReference:  row.ProviderReference,
		FailureReason:      row.FailureReason,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
