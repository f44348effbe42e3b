package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"grants/dataloader/datalake/model"
)

const (
	GrantsCollection     = "grants"
	GrantSyncsCollection = "grantSyncs"
)

var errSyncNotFound = errors.New("sync record not found")

// SyncNotFoundError is a error wrapper.
func SyncNotFoundError(fileName string) error {
	return fmt.Errorf("%w, %s", errSyncNotFound, fileName)
}

// MongoRepository implements the repository.Repository interface for MongoDB.
type MongoRepository struct {
	provider   CollectionProvider
	transactor Transactor
}

// NewMongoRepository creates a new MongoRepository.
func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{
		provider: provider,
	}
}

// WithTransactions makes every UpsertGrants batch run inside a transaction.
func (r *MongoRepository) WithTransactions(t Transactor) *MongoRepository {
	r.transactor = t
	return r
}

// EnsureSchema creates the unique keys both collections rely on.
func (r *MongoRepository) EnsureSchema(ctx context.Context) error {
	grantIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "opportunityId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "closeDate", Value: 1}}},
	}
	if _, err := r.provider.Collection(GrantsCollection).CreateIndexes(ctx, grantIndexes); err != nil {
		return err
	}

	syncIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "fileName", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := r.provider.Collection(GrantSyncsCollection).CreateIndexes(ctx, syncIndexes); err != nil {
		return err
	}

	return nil
}

// UpsertGrants bulk upserts grants keyed by opportunityId.
func (r *MongoRepository) UpsertGrants(ctx context.Context, grants []model.Grant) (int64, error) {
	if len(grants) == 0 {
		return 0, nil // Nothing to upsert
	}

	models := make([]mongo.WriteModel, 0, len(grants))
	for _, doc := range grants {
		filter := bson.M{"opportunityId": doc.OpportunityID}
		update := bson.M{"$set": doc}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	var written int64
	write := func(ctx context.Context) error {
		collection := r.provider.Collection(GrantsCollection)
		result, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			return fmt.Errorf("failed to perform bulk write for collection %s: %w", GrantsCollection, err)
		}
		written = result.MatchedCount + result.UpsertedCount
		return nil
	}

	if r.transactor == nil {
		if err := write(ctx); err != nil {
			return 0, err
		}
		return written, nil
	}

	if err := r.transactor.WithTransaction(ctx, write); err != nil {
		return 0, err
	}
	return written, nil
}

// DeleteExpiredGrants removes grants that closed before cutoff. A null
// closeDate never matches $lt.
func (r *MongoRepository) DeleteExpiredGrants(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"closeDate": bson.M{"$lt": cutoff.UTC()}}

	result, err := r.provider.Collection(GrantsCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired grants: %w", err)
	}

	return result.DeletedCount, nil
}

// CountGrants returns the number of stored grants.
func (r *MongoRepository) CountGrants(ctx context.Context) (int64, error) {
	return r.provider.Collection(GrantsCollection).CountDocuments(ctx, bson.D{})
}

// CompletedFileNames returns the names of the files already ingested.
func (r *MongoRepository) CompletedFileNames(ctx context.Context) ([]string, error) {
	values, err := r.provider.Collection(GrantSyncsCollection).
		Distinct(ctx, "fileName", bson.M{"status": model.SyncCompleted})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}

	return names, nil
}

// StartSync creates or resets the sync record for sync.FileName.
func (r *MongoRepository) StartSync(ctx context.Context, sync *model.GrantSync) error {
	if sync.ID == "" {
		sync.ID = uuid.NewString()
	}
	sync.Status = model.SyncProcessing
	sync.RecordsProcessed, sync.RecordsDeleted, sync.RecordsSkipped = 0, 0, 0
	sync.ErrorMessage = ""
	sync.CompletedAt = nil

	update := bson.M{
		"$set": bson.M{
			"status":           sync.Status,
			"extractedDate":    sync.ExtractedDate,
			"fileSize":         sync.FileSize,
			"checksum":         sync.Checksum,
			"recordsProcessed": int64(0),
			"recordsDeleted":   int64(0),
			"recordsSkipped":   int64(0),
			"errorMessage":     "",
			"startedAt":        sync.StartedAt,
			"completedAt":      nil,
		},
		"$setOnInsert": bson.M{"_id": sync.ID},
	}

	result, err := r.provider.Collection(GrantSyncsCollection).UpdateOne(
		ctx, bson.M{"fileName": sync.FileName}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to start sync for %s: %w", sync.FileName, err)
	}
	if id, ok := result.UpsertedID.(string); ok {
		sync.ID = id
	}

	return nil
}

// FinishSync records the outcome of a sync started with StartSync.
func (r *MongoRepository) FinishSync(ctx context.Context, sync model.GrantSync) error {
	update := bson.M{
		"$set": bson.M{
			"status":           sync.Status,
			"checksum":         sync.Checksum,
			"recordsProcessed": sync.RecordsProcessed,
			"recordsDeleted":   sync.RecordsDeleted,
			"recordsSkipped":   sync.RecordsSkipped,
			"errorMessage":     sync.ErrorMessage,
			"completedAt":      sync.CompletedAt,
		},
	}

	result, err := r.provider.Collection(GrantSyncsCollection).UpdateOne(
		ctx, bson.M{"fileName": sync.FileName}, update)
	if err != nil {
		return fmt.Errorf("failed to finish sync for %s: %w", sync.FileName, err)
	}
	if result.MatchedCount == 0 {
		return SyncNotFoundError(sync.FileName)
	}

	return nil
}

// RecentSyncs returns up to limit sync records, newest first.
func (r *MongoRepository) RecentSyncs(ctx context.Context, limit int) ([]model.GrantSync, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.provider.Collection(GrantSyncsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var syncs []model.GrantSync
	if err := cursor.All(ctx, &syncs); err != nil {
		return nil, fmt.Errorf("failed to decode sync records: %w", err)
	}

	return syncs, nil
}
