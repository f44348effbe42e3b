// Package ingest wires configuration, storage and the remote source into
// the grants sync job.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"grants/dataloader/appcontext"
	"grants/dataloader/config"
	"grants/dataloader/datalake"
	"grants/dataloader/datalake/model"
	"grants/dataloader/datalake/repository"
	"grants/dataloader/eligibility"
	"grants/dataloader/grantsgov"
	"grants/dataloader/storage"
	"grants/dataloader/xmlfeed"
)

// OpenStoreFunc opens the configured repository.
type OpenStoreFunc func(ctx context.Context, cfg *config.Config) (repository.Repository, storage.CloseFunc, error)

// SinkDependencies holds all the dependencies for the Sink.
type SinkDependencies struct {
	Config     *config.Config
	HTTPClient *http.Client
	// OpenStore defaults to storage.Open.
	OpenStore OpenStoreFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sink runs the grants sync and its maintenance commands against the
// configured store and source.
type Sink struct {
	deps SinkDependencies
}

// FileStatus is a listed extract and whether it was already ingested.
type FileStatus struct {
	model.ExtractFile
	Processed bool `json:"processed"`
}

// Status summarizes the store.
type Status struct {
	Grants int64             `json:"grants"`
	Syncs  []model.GrantSync `json:"syncs"`
}

// NewSink creates a new Sink instance.
func NewSink(deps SinkDependencies) *Sink {
	if deps.OpenStore == nil {
		deps.OpenStore = storage.Open
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Sink{deps: deps}
}

// Sync runs one grants sync. Every failure, including setup, is reported
// in the Result.
func (s *Sink) Sync(ctx context.Context) *datalake.Result {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Starting grants sync")

	if s.deps.Config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.Config.JobTimeout)
		defer cancel()
	}

	var result *datalake.Result
	err := s.withStore(ctx, func(repo repository.Repository) error {
		job, err := s.newJob(repo)
		if err != nil {
			return err
		}
		result = job.Run(ctx)
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "Grants sync could not start", "error", err)
		result = &datalake.Result{Success: false, ErrorMessage: err.Error()}
	}

	result.Log(logger)
	return result
}

// Cleanup deletes expired grants without running a sync.
func (s *Sink) Cleanup(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.withStore(ctx, func(repo repository.Repository) error {
		job := datalake.NewJob(nil, nil, repo, s.jobOptions())
		var err error
		deleted, err = job.Cleanup(ctx)
		return err
	})
	return deleted, err
}

// ListFiles returns the remote extracts, flagging the ones already ingested.
func (s *Sink) ListFiles(ctx context.Context) ([]FileStatus, error) {
	client, err := s.newClient()
	if err != nil {
		return nil, err
	}

	files, err := client.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []FileStatus
	err = s.withStore(ctx, func(repo repository.Repository) error {
		completed, err := repo.CompletedFileNames(ctx)
		if err != nil {
			return err
		}
		done := make(map[string]bool, len(completed))
		for _, name := range completed {
			done[name] = true
		}

		statuses = make([]FileStatus, 0, len(files))
		for _, f := range files {
			statuses = append(statuses, FileStatus{ExtractFile: f, Processed: done[f.FileName]})
		}
		return nil
	})
	return statuses, err
}

// Status returns the grant count and the latest sync records.
func (s *Sink) Status(ctx context.Context, limit int) (*Status, error) {
	status := &Status{}
	err := s.withStore(ctx, func(repo repository.Repository) error {
		var err error
		if status.Grants, err = repo.CountGrants(ctx); err != nil {
			return err
		}
		status.Syncs, err = repo.RecentSyncs(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Migrate creates the store schema.
func (s *Sink) Migrate(ctx context.Context) error {
	return s.withStore(ctx, func(repository.Repository) error { return nil })
}

// withStore opens the store, ensures its schema and runs fn.
func (s *Sink) withStore(ctx context.Context, fn func(repo repository.Repository) error) error {
	logger := appcontext.LoggerFromContext(ctx)

	repo, closeStore, err := s.deps.OpenStore(ctx, s.deps.Config)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", s.deps.Config.StoreDriver, err)
	}
	defer func() {
		if deferErr := closeStore(context.WithoutCancel(ctx)); deferErr != nil {
			logger.ErrorContext(ctx, "Error closing store", "error", deferErr)
		}
	}()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare %s store: %w", s.deps.Config.StoreDriver, err)
	}

	return fn(repo)
}

func (s *Sink) newClient() (*grantsgov.Client, error) {
	cfg := s.deps.Config
	return grantsgov.NewClient(s.deps.HTTPClient, cfg.ListingURL, cfg.DownloadBaseURL, grantsgov.Options{
		ListingTimeout:  cfg.ListingTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	})
}

func (s *Sink) newParser() (*xmlfeed.FeedParser, error) {
	rules, err := eligibility.DefaultRules()
	if path := s.deps.Config.EligibilityRulesFile; path != "" {
		rules, err = eligibility.LoadRules(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load eligibility rules: %w", err)
	}
	return xmlfeed.NewFeedParser(eligibility.NewFilter(rules)), nil
}

func (s *Sink) newJob(repo repository.Repository) (*datalake.Job, error) {
	client, err := s.newClient()
	if err != nil {
		return nil, err
	}
	parser, err := s.newParser()
	if err != nil {
		return nil, err
	}
	return datalake.NewJob(client, parser, repo, s.jobOptions()), nil
}

func (s *Sink) jobOptions() datalake.Options {
	return datalake.Options{
		BatchSize:    s.deps.Config.BatchSize,
		CleanupGrace: s.deps.Config.CleanupGrace,
		Now:          s.deps.Now,
	}
}
