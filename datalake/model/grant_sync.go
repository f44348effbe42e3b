package model

import "time"

// SyncStatus is the processing state of one extract file.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncProcessing SyncStatus = "processing"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// GrantSync represents a record in the grantSyncs collection: one row per
// extract file, keyed by FileName.
type GrantSync struct {
	ID               string     `bson:"_id"              json:"id"`
	FileName         string     `bson:"fileName"         json:"fileName"`
	Status           SyncStatus `bson:"status"           json:"status"`
	ExtractedDate    *time.Time `bson:"extractedDate"    json:"extractedDate,omitempty"`
	FileSize         string     `bson:"fileSize"         json:"fileSize,omitempty"`
	Checksum         string     `bson:"checksum"         json:"checksum,omitempty"`
	RecordsProcessed int64      `bson:"recordsProcessed" json:"recordsProcessed"`
	RecordsDeleted   int64      `bson:"recordsDeleted"   json:"recordsDeleted"`
	RecordsSkipped   int64      `bson:"recordsSkipped"   json:"recordsSkipped"`
	ErrorMessage     string     `bson:"errorMessage"     json:"errorMessage,omitempty"`
	StartedAt        time.Time  `bson:"startedAt"        json:"startedAt"`
	CompletedAt      *time.Time `bson:"completedAt"      json:"completedAt,omitempty"`
}
