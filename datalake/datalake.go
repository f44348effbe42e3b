// Package datalake runs the grants ingestion job: pick the newest extract
// not yet ingested, load it into the repository, and record the outcome.
package datalake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"grants/dataloader/appcontext"
	"grants/dataloader/archive"
	"grants/dataloader/datalake/model"
	"grants/dataloader/datalake/repository"
	"grants/dataloader/xmlfeed"
)

const (
	DefaultBatchSize    = 100
	DefaultCleanupGrace = 24 * time.Hour
)

var errUpsertBatch = errors.New("failed to upsert batch")

// UpsertBatchError is a error wrapper.
func UpsertBatchError(batch, total int, baseErr error) error {
	return fmt.Errorf("%w %d of %d, %w", errUpsertBatch, batch, total, baseErr)
}

// Options tune a Job. Zero values take the defaults above.
type Options struct {
	BatchSize    int
	CleanupGrace time.Duration
	Now          func() time.Time
}

// Job syncs one extract file per run.
type Job struct {
	source    Source
	parser    xmlfeed.Parser
	repo      repository.Repository
	batchSize int
	grace     time.Duration
	now       func() time.Time
}

// NewJob creates a new Job.
func NewJob(source Source, parser xmlfeed.Parser, repo repository.Repository, opts Options) *Job {
	j := &Job{
		source:    source,
		parser:    parser,
		repo:      repo,
		batchSize: opts.BatchSize,
		grace:     opts.CleanupGrace,
		now:       opts.Now,
	}
	if j.batchSize <= 0 {
		j.batchSize = DefaultBatchSize
	}
	if j.grace <= 0 {
		j.grace = DefaultCleanupGrace
	}
	if j.now == nil {
		j.now = time.Now
	}
	return j
}

// SelectCandidate returns the newest file whose name is not in completed.
// Files sharing an extracted date keep their listing order.
func SelectCandidate(files []model.ExtractFile, completed []string) (*model.ExtractFile, bool) {
	done := make(map[string]struct{}, len(completed))
	for _, name := range completed {
		done[name] = struct{}{}
	}

	sorted := make([]model.ExtractFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, k int) bool {
		return sorted[i].ExtractedDate.After(sorted[k].ExtractedDate)
	})

	for i := range sorted {
		if _, ok := done[sorted[i].FileName]; !ok {
			return &sorted[i], true
		}
	}
	return nil, false
}

// Run executes one sync. Errors are reported in the Result, never returned.
func (j *Job) Run(ctx context.Context) *Result {
	logger := appcontext.LoggerFromContext(ctx)
	started := j.now()
	result := &Result{}
	defer func() { result.Duration = j.now().Sub(started).String() }()

	files, err := j.source.ListFiles(ctx)
	if err != nil {
		return j.fail(ctx, result, nil, fmt.Errorf("failed to list extract files: %w", err))
	}
	if len(files) == 0 {
		logger.InfoContext(ctx, "No extract files listed")
		result.Success = true
		result.Message = MessageNoFiles
		return result
	}

	completed, err := j.repo.CompletedFileNames(ctx)
	if err != nil {
		return j.fail(ctx, result, nil, fmt.Errorf("failed to load completed syncs: %w", err))
	}

	file, ok := SelectCandidate(files, completed)
	if !ok {
		logger.InfoContext(ctx, "Every listed extract is already ingested", "files", len(files))
		result.Success = true
		result.Message = MessageNoNewFiles
		return result
	}

	result.FileName = file.FileName
	result.FileSize = file.Size
	if !file.ExtractedDate.IsZero() {
		extracted := file.ExtractedDate
		result.ExtractedDate = &extracted
	}
	logger.InfoContext(ctx, "Selected extract", "file", file.FileName, "extractedDate", file.ExtractedDate, "size", file.Size)

	sync := &model.GrantSync{
		FileName:      file.FileName,
		ExtractedDate: result.ExtractedDate,
		FileSize:      file.Size,
		StartedAt:     started,
	}
	if err := j.repo.StartSync(ctx, sync); err != nil {
		return j.fail(ctx, result, nil, fmt.Errorf("failed to start sync: %w", err))
	}

	if err := j.process(ctx, *file, sync, result); err != nil {
		return j.fail(ctx, result, sync, err)
	}

	completedAt := j.now()
	sync.Status = model.SyncCompleted
	sync.CompletedAt = &completedAt
	j.copyCounts(sync, result)
	if err := j.repo.FinishSync(ctx, *sync); err != nil {
		return j.fail(ctx, result, sync, fmt.Errorf("failed to complete sync: %w", err))
	}

	result.Success = true
	logger.InfoContext(ctx, "Sync completed",
		"file", file.FileName,
		"processed", result.RecordsProcessed,
		"deleted", result.RecordsDeleted,
		"skipped", result.RecordsSkipped)
	return result
}

// process downloads, parses and persists one extract, counting into result.
func (j *Job) process(ctx context.Context, file model.ExtractFile, sync *model.GrantSync, result *Result) error {
	logger := appcontext.LoggerFromContext(ctx)

	data, err := j.source.Download(ctx, file.FileName)
	if err != nil {
		return fmt.Errorf("failed to download extract: %w", err)
	}
	if err := archive.ValidateZip(data); err != nil {
		return fmt.Errorf("failed to validate extract: %w", err)
	}
	sync.Checksum = archive.Checksum(data)

	entry, xmlData, err := archive.ExtractXML(data)
	if err != nil {
		return fmt.Errorf("failed to extract xml: %w", err)
	}
	logger.DebugContext(ctx, "Extracted XML entry", "entry", entry, "bytes", len(xmlData))

	parsed, err := j.parser.Parse(ctx, bytes.NewReader(xmlData))
	if err != nil {
		return fmt.Errorf("failed to parse extract: %w", err)
	}
	result.RecordsSkipped = parsed.Invalid + parsed.Ineligible

	cutoff := j.now().Add(-j.grace)
	deleted, err := j.repo.DeleteExpiredGrants(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired grants: %w", err)
	}
	result.RecordsDeleted = deleted

	current := make([]model.Grant, 0, len(parsed.Grants))
	for _, g := range parsed.Grants {
		if g.ExpiredBefore(cutoff) {
			result.RecordsSkipped++
			continue
		}
		current = append(current, g)
	}

	return j.upsert(ctx, current, result)
}

// upsert writes grants in batches. A failed batch leaves earlier batches
// in place.
func (j *Job) upsert(ctx context.Context, grants []model.Grant, result *Result) error {
	logger := appcontext.LoggerFromContext(ctx)
	batches := (len(grants) + j.batchSize - 1) / j.batchSize

	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := i * j.batchSize
		end := min(start+j.batchSize, len(grants))

		written, err := j.repo.UpsertGrants(ctx, grants[start:end])
		if err != nil {
			return UpsertBatchError(i+1, batches, err)
		}
		result.RecordsProcessed += written
		logger.DebugContext(ctx, "Upserted batch", "batch", i+1, "of", batches, "records", written)
	}

	return nil
}

// Cleanup deletes grants that closed more than the grace period ago.
func (j *Job) Cleanup(ctx context.Context) (int64, error) {
	logger := appcontext.LoggerFromContext(ctx)
	cutoff := j.now().Add(-j.grace)

	deleted, err := j.repo.DeleteExpiredGrants(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired grants: %w", err)
	}

	logger.InfoContext(ctx, "Deleted expired grants", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

func (j *Job) copyCounts(sync *model.GrantSync, result *Result) {
	sync.RecordsProcessed = result.RecordsProcessed
	sync.RecordsDeleted = result.RecordsDeleted
	sync.RecordsSkipped = result.RecordsSkipped
}

// fail records err on result and, when a sync was started, marks it failed.
func (j *Job) fail(ctx context.Context, result *Result, sync *model.GrantSync, err error) *Result {
	logger := appcontext.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "Grants sync failed", "file", result.FileName, "error", err)

	result.Success = false
	result.ErrorMessage = err.Error()

	if sync == nil {
		return result
	}

	failedAt := j.now()
	sync.Status = model.SyncFailed
	sync.ErrorMessage = err.Error()
	sync.CompletedAt = &failedAt
	j.copyCounts(sync, result)

	// The run context may be the reason for the failure.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if markErr := j.repo.FinishSync(markCtx, *sync); markErr != nil {
		logger.ErrorContext(ctx, "Failed to mark sync as failed", "file", sync.FileName, "error", markErr)
	}

	return result
}
