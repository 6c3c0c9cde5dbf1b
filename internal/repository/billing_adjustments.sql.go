package repository

import (
	"context"

	"github.com/google/uuid"
)

const adjustmentColumns = `id, organization_id, stripe_customer_id, old_asset_count, new_asset_count,
    billing_cycle, days_remaining, delta_minor_units, prorated_minor_units, direction, currency,
    status, provider_reference, failure_reason, created_at, updated_at`

func scanBillingAdjustment(row interface{ Scan(...interface{}) error }) (BillingAdjustment, error) {
	var i BillingAdjustment
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.StripeCustomerID,
		&i.OldAssetCount,
		&i.NewAssetCount,
		&i.BillingCycle,
		&i.DaysRemaining,
		&i.DeltaMinorUnits,
		&i.ProratedMinorUnits,
		&i.Direction,
		&i.Currency,
		&i.Status,
		&i.ProviderReference,
		&i.FailureReason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createBillingAdjustment = `-- name: CreateBillingAdjustment :one
INSERT INTO billing_adjustments (
    id, organization_id, stripe_customer_id, old_asset_count, new_asset_count,
    billing_cycle, days_remaining, delta_minor_units, prorated_minor_units, direction,
    currency, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + adjustmentColumns

type CreateBillingAdjustmentParams struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	StripeCustomerID   string
	OldAssetCount      int64
	NewAssetCount      int64
	BillingCycle       string
	DaysRemaining      int64
	DeltaMinorUnits    int64
	ProratedMinorUnits int64
	Direction          string
	Currency           string
	Status             string
}

func (q *Queries) CreateBillingAdjustment(ctx context.Context, arg CreateBillingAdjustmentParams) (BillingAdjustment, error) {
	row := q.db.QueryRowContext(ctx, createBillingAdjustment,
		arg.ID,
		arg.OrganizationID,
		arg.StripeCustomerID,
		arg.OldAssetCount,
		arg.NewAssetCount,
		arg.BillingCycle,
		arg.DaysRemaining,
		arg.DeltaMinorUnits,
		arg.ProratedMinorUnits,
		arg.Direction,
		arg.Currency,
		arg.Status,
	)
	return scanBillingAdjustment(row)
}

const getBillingAdjustment = `-- name: GetBillingAdjustment :one
SELECT ` + adjustmentColumns + `
FROM billing_adjustments
WHERE id = $1`

func (q *Queries) GetBillingAdjustment(ctx context.Context, id uuid.UUID) (BillingAdjustment, error) {
	row := q.db.QueryRowContext(ctx, getBillingAdjustment, id)
	return scanBillingAdjustment(row)
}

const getBillingAdjustmentForUpdate = `-- name: GetBillingAdjustmentForUpdate :one
SELECT ` + adjustmentColumns + `
FROM billing_adjustments
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetBillingAdjustmentForUpdate(ctx context.Context, id uuid.UUID) (BillingAdjustment, error) {
	row := q.db.QueryRowContext(ctx, getBillingAdjustmentForUpdate, id)
	return scanBillingAdjustment(row)
}

const updateBillingAdjustmentStatus = `-- name: UpdateBillingAdjustmentStatus :exec
UPDATE billing_adjustments
SET status = $2,
    provider_reference = $3,
    failure_reason = $4,
    updated_at = NOW()
WHERE id = $1`

type UpdateBillingAdjustmentStatusParams struct {
	ID                uuid.UUID
	Status            string
	ProviderReference string
	FailureReason     string
}

func (q *Queries) UpdateBillingAdjustmentStatus(ctx context.Context, arg UpdateBillingAdjustmentStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateBillingAdjustmentStatus,
		arg.ID,
		arg.Status,
		arg.ProviderReference,
		arg.FailureReason,
	)
	return err
}

const listBillingAdjustmentsByOrganization = `-- name: ListBillingAdjustmentsByOrganization :many
SELECT ` + adjustmentColumns + `
FROM billing_adjustments
WHERE organization_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListBillingAdjustmentsByOrganizationParams struct {
	OrganizationID uuid.UUID
	Limit          int32
	Offset         int32
}

func (q *Queries) ListBillingAdjustmentsByOrganization(ctx context.Context, arg ListBillingAdjustmentsByOrganizationParams) ([]BillingAdjustment, error) {
	rows, err := q.db.QueryContext(ctx, listBillingAdjustmentsByOrganization, arg.OrganizationID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BillingAdjustment
	for rows.Next() {
		i, err := scanBillingAdjustment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
