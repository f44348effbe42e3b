package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"grants/dataloader/appcontext"
)

const defaultDatabase = "grants"

// ---- Abstractions for Testability ----

// DataStore defines the interface for database operations.
type DataStore interface {
	BulkWrite(
		ctx context.Context,
		models []mongo.WriteModel,
		opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	UpdateOne(
		ctx context.Context,
		filter interface{},
		update interface{},
		opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(
		ctx context.Context,
		filter interface{},
		opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Distinct(
		ctx context.Context,
		fieldName string,
		filter interface{},
		opts ...*options.DistinctOptions) ([]interface{}, error)
	Find(
		ctx context.Context,
		filter interface{},
		opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(
		ctx context.Context,
		filter interface{},
		opts ...*options.CountOptions) (int64, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error)
}

// CollectionProvider defines the interface for obtaining a collection.
type CollectionProvider interface {
	Collection(name string) DataStore
}

// Transactor runs fn inside a multi-document transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MongoClient is the subset of *mongo.Client used by the provider.
type MongoClient interface {
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
	StartSession(opts ...*options.SessionOptions) (mongo.Session, error)
	Disconnect(ctx context.Context) error
}

// MongoCollection adapts *mongo.Collection to DataStore.
type MongoCollection struct {
	*mongo.Collection
}

// BulkWrite performs a bulk write operation.
func (c *MongoCollection) BulkWrite(
	ctx context.Context,
	models []mongo.WriteModel,
	opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	result, err := c.Collection.BulkWrite(ctx, models, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform BulkWrite: %w", err)
	}

	return result, nil
}

// UpdateOne updates or upserts a single document.
func (c *MongoCollection) UpdateOne(
	ctx context.Context,
	filter interface{},
	update interface{},
	opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	result, err := c.Collection.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform UpdateOne: %w", err)
	}

	return result, nil
}

// DeleteMany removes every document matching filter.
func (c *MongoCollection) DeleteMany(
	ctx context.Context,
	filter interface{},
	opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	result, err := c.Collection.DeleteMany(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform DeleteMany: %w", err)
	}

	return result, nil
}

// Distinct returns the distinct values of fieldName.
func (c *MongoCollection) Distinct(
	ctx context.Context,
	fieldName string,
	filter interface{},
	opts ...*options.DistinctOptions) ([]interface{}, error) {
	values, err := c.Collection.Distinct(ctx, fieldName, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform Distinct on %s: %w", fieldName, err)
	}

	return values, nil
}

// Find opens a cursor over the matching documents.
func (c *MongoCollection) Find(
	ctx context.Context,
	filter interface{},
	opts ...*options.FindOptions) (*mongo.Cursor, error) {
	cursor, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform Find: %w", err)
	}

	return cursor, nil
}

// CountDocuments counts the matching documents.
func (c *MongoCollection) CountDocuments(
	ctx context.Context,
	filter interface{},
	opts ...*options.CountOptions) (int64, error) {
	count, err := c.Collection.CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, fmt.Errorf("failed to perform CountDocuments: %w", err)
	}

	return count, nil
}

// CreateIndexes creates the given indexes if they do not exist.
func (c *MongoCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	names, err := c.Collection.Indexes().CreateMany(ctx, models)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes on %s: %w", c.Name(), err)
	}

	return names, nil
}

// MongoProvider adapts a MongoClient to CollectionProvider and Transactor.
type MongoProvider struct {
	client   MongoClient
	database string
}

// NewMongoProvider creates a new MongoProvider for the named database.
func NewMongoProvider(client MongoClient, database string) *MongoProvider {
	if database == "" {
		database = defaultDatabase
	}
	return &MongoProvider{client: client, database: database}
}

// Collection returns a DataStore for the given collection name.
func (p *MongoProvider) Collection(name string) DataStore {
	return &MongoCollection{p.client.Database(p.database).Collection(name)}
}

// WithTransaction runs fn in a session transaction. The deployment must be
// a replica set or sharded cluster.
func (p *MongoProvider) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := p.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	return nil
}

// ConnectToMongoDB establishes a connection to MongoDB.
func ConnectToMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Attempting to connect to MongoDB")

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Successfully established connection to MongoDB")
	return client, nil
}
