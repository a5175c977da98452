package importer

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-importer/internal/assign"
	"github.com/ignite/lead-importer/internal/mapping"
)

// JobStatus is the lifecycle of one import job. The parse and commit phases
// are separated so a human can review validation results and adjust the
// duplicate/assignment strategy before any lead is written.
type JobStatus string

const (
	JobPending        JobStatus = "pending"
	JobParsing        JobStatus = "parsing"
	JobAwaitingReview JobStatus = "awaiting_review"
	JobCommitting     JobStatus = "committing"
	JobCompleted      JobStatus = "completed"
	JobFailed         JobStatus = "failed"
)

// RowStatus tracks one parsed row through the pipeline.
type RowStatus string

const (
	RowValid            RowStatus = "valid"
	RowInvalid          RowStatus = "invalid"
	RowImported         RowStatus = "imported"
	RowUpdated          RowStatus = "updated"
	RowSkippedDuplicate RowStatus = "skipped_duplicate"
)

// Job is one import run.
type Job struct {
	ID            uuid.UUID `json:"id"`
	Filename      string    `json:"filename"`
	Status        JobStatus `json:"status"`
	TotalRows     int       `json:"total_rows"`
	ValidRows     int       `json:"valid_rows"`
	InvalidRows   int       `json:"invalid_rows"`
	ImportedCount int       `json:"imported_count"`
	UpdatedCount  int       `json:"updated_count"`
	SkippedCount  int       `json:"skipped_count"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DuplicateStrategy decides the disposition of store duplicates at commit.
type DuplicateStrategy string

const (
	// StrategySkip leaves existing leads untouched.
	StrategySkip DuplicateStrategy = "skip"
	// StrategyUpdate merges non-empty incoming fields into the existing lead.
	StrategyUpdate DuplicateStrategy = "update"
)

// DefaultDedupeFields is the checked-field priority order when the caller
// supplies none.
var DefaultDedupeFields = []mapping.FieldKey{
	mapping.FieldEmail,
	mapping.FieldPhone,
	mapping.FieldExternalID,
}

// CommitOptions configure phase two.
type CommitOptions struct {
	DuplicateStrategy DuplicateStrategy  `json:"duplicate_strategy"`
	DedupeFields      []mapping.FieldKey `json:"dedupe_fields,omitempty"`
	Assignment        assign.Config      `json:"assignment"`
}

// CommitResult aggregates phase two.
type CommitResult struct {
	JobID           string  `json:"job_id"`
	Imported        int     `json:"imported"`
	Updated         int     `json:"updated"`
	Skipped         int     `json:"skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Progress is the observational snapshot published to Redis. Nothing in the
// pipeline reads it back.
type Progress struct {
	JobID         string    `json:"job_id"`
	Phase         string    `json:"phase"` // parsing, committing, done
	ProcessedRows int64     `json:"processed_rows"`
	ValidRows     int64     `json:"valid_rows"`
	InvalidRows   int64     `json:"invalid_rows"`
	ImportedRows  int64     `json:"imported_rows"`
	UpdatedRows   int64     `json:"updated_rows"`
	SkippedRows   int64     `json:"skipped_rows"`
	CurrentBatch  int       `json:"current_batch"`
	UpdatedAt     time.Time `json:"updated_at"`
}
