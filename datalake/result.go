package datalake

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	MessageNoFiles    = "no files available"
	MessageNoNewFiles = "no new files to process"
)

// Result is the outcome of one job run.
type Result struct {
	Success          bool       `json:"success"`
	RecordsProcessed int64      `json:"recordsProcessed"`
	RecordsDeleted   int64      `json:"recordsDeleted"`
	RecordsSkipped   int64      `json:"recordsSkipped"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	Message          string     `json:"message,omitempty"`
	FileName         string     `json:"fileName,omitempty"`
	ExtractedDate    *time.Time `json:"extractedDate,omitempty"`
	FileSize         string     `json:"fileSize,omitempty"`
	Duration         string     `json:"duration,omitempty"`
}

// Log prints the run summary to the provided logger.
func (r *Result) Log(logger *slog.Logger) {
	logger.Info("--- Grants Sync Result ---")
	logger.Info(fmt.Sprintf("Success: %t", r.Success))
	if r.Message != "" {
		logger.Info(r.Message)
	}
	if r.FileName != "" {
		logger.Info(fmt.Sprintf("File: %s (%s)", r.FileName, r.FileSize))
	}
	logger.Info(fmt.Sprintf("Records processed: %d", r.RecordsProcessed))
	logger.Info(fmt.Sprintf("Records deleted: %d", r.RecordsDeleted))
	logger.Info(fmt.Sprintf("Records skipped: %d", r.RecordsSkipped))
	if r.ErrorMessage != "" {
		logger.Error(fmt.Sprintf("Error: %s", r.ErrorMessage))
	}
	logger.Info("--------------------------")
}
