package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	Result       pqtype.NullRawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BillingAdjustment struct {
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
	ProviderReference  string
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
