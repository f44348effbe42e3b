package storage

import (
	"context"
	"errors"
	"fmt"

	"grants/dataloader/appcontext"
	"grants/dataloader/config"
	"grants/dataloader/datalake/repository"
)

var errUnknownDriver = errors.New("unknown store driver")

// UnknownDriverError is a error wrapper.
func UnknownDriverError(driver string) error {
	return fmt.Errorf("%w, %q", errUnknownDriver, driver)
}

// ConnectToMongoDBFunc is a variable that holds the function to connect to MongoDB.
// This allows for mocking in tests.
var ConnectToMongoDBFunc = ConnectToMongoDB

// CloseFunc releases the resources held by an opened repository.
type CloseFunc func(ctx context.Context) error

// Open connects to the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (repository.Repository, CloseFunc, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Opening store", "driver", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := ConnectToMongoDBFunc(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}

		provider := NewMongoProvider(client, cfg.MongoDatabase)
		repo := NewMongoRepository(provider)
		if cfg.MongoTransactions {
			logger.DebugContext(ctx, "Upsert batches run in MongoDB transactions")
			repo.WithTransactions(provider)
		}

		return repo, client.Disconnect, nil
	case config.DriverPostgres, config.DriverSQLite:
		dialect := SQLite
		if cfg.StoreDriver == config.DriverPostgres {
			dialect = Postgres
		}

		repo, err := OpenSQL(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		return repo, func(context.Context) error { return repo.Close() }, nil
	default:
		return nil, nil, UnknownDriverError(cfg.StoreDriver)
	}
}
