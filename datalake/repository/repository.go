package repository

import (
	"context"
	"time"

	"grants/dataloader/datalake/model"
)

// GrantRepository defines the storage operations on grants.
type GrantRepository interface {
	// UpsertGrants writes one batch atomically, keyed by OpportunityID,
	// and returns the number of records written.
	UpsertGrants(ctx context.Context, grants []model.Grant) (int64, error)
	// DeleteExpiredGrants removes grants whose close date is before cutoff.
	// Grants without a close date are kept.
	DeleteExpiredGrants(ctx context.Context, cutoff time.Time) (int64, error)
	CountGrants(ctx context.Context) (int64, error)
}

// SyncRepository defines the storage operations on the per-file sync ledger.
type SyncRepository interface {
	CompletedFileNames(ctx context.Context) ([]string, error)
	// StartSync creates or resets the record for sync.FileName to processing.
	// sync.ID is filled in when the store assigns one.
	StartSync(ctx context.Context, sync *model.GrantSync) error
	FinishSync(ctx context.Context, sync model.GrantSync) error
	RecentSyncs(ctx context.Context, limit int) ([]model.GrantSync, error)
}

// Repository defines the interface for data storage operations.
type Repository interface {
	GrantRepository
	SyncRepository
	EnsureSchema(ctx context.Context) error
}
