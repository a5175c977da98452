package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-importer/internal/assign"
	"github.com/ignite/lead-importer/internal/dedupe"
	"github.com/ignite/lead-importer/internal/ingest"
	"github.com/ignite/lead-importer/internal/mapping"
	"github.com/ignite/lead-importer/internal/pkg/distlock"
	"github.com/ignite/lead-importer/internal/pkg/logger"
)

// ErrCommitInProgress is returned when another worker holds the commit lock
// for the job.
var ErrCommitInProgress = errors.New("commit already running for this job")

// commitLockTTL bounds how long a crashed worker can hold a job's commit
// lock before another may take over.
const commitLockTTL = 15 * time.Minute

// Options tune one Service instance.
type Options struct {
	// CommitPageSize is the number of valid rows loaded and committed per
	// transaction in phase two. Defaults to ingest.DefaultBatchSize.
	CommitPageSize int
	// DedupePageSize is the cursor page size for store-set construction.
	DedupePageSize int
}

// Service runs the two-phase import pipeline: parse-and-validate into the
// row table, then dedupe-assign-commit into the leads table. One Service
// handles many jobs, but each job's row stream is strictly sequential; the
// round-robin index and the file-scoped dedupe set are single-writer state.
type Service struct {
	store    *Store
	leads    *dedupe.LeadStore
	progress *ProgressPublisher
	redis    *redis.Client

	commitPageSize int
	dedupePageSize int
}

func NewService(db *sql.DB, redisClient *redis.Client, opts Options) *Service {
	if opts.CommitPageSize <= 0 {
		opts.CommitPageSize = ingest.DefaultBatchSize
	}
	if opts.DedupePageSize <= 0 {
		opts.DedupePageSize = dedupe.DefaultPageSize
	}
	return &Service{
		store:          NewStore(db),
		leads:          dedupe.NewLeadStore(db),
		progress:       NewProgressPublisher(redisClient),
		redis:          redisClient,
		commitPageSize: opts.CommitPageSize,
		dedupePageSize: opts.DedupePageSize,
	}
}

// CreateJob registers a new import job with its resolved mapping.
func (s *Service) CreateJob(ctx context.Context, filename string, mappings []mapping.ColumnMapping) (*Job, error) {
	return s.store.CreateJob(ctx, filename, mappings)
}

// GetJob loads a job by id.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.store.GetJob(ctx, id)
}

// GetProgress returns the last published progress snapshot, if any.
func (s *Service) GetProgress(ctx context.Context, id uuid.UUID) (*Progress, error) {
	return s.progress.Get(ctx, id.String())
}

// RunParse executes phase one: stream the source through the validator and
// land row results in the handoff table, batch by batch. A sink or source
// failure aborts the parse and marks the job failed; batches already
// flushed remain (resume uses ParseOptions.StartRow).
func (s *Service) RunParse(ctx context.Context, jobID uuid.UUID, src ingest.FileSource, mappings []mapping.ColumnMapping, opts ingest.ParseOptions) (*ingest.ParseResult, error) {
	if err := s.store.SetJobStatus(ctx, jobID, JobParsing, ""); err != nil {
		return nil, err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, s.failJob(ctx, jobID, err)
	}
	defer rc.Close()

	var processed, valid, invalid int64
	batchNo := 0
	sink := ingest.RowSinkFunc(func(ctx context.Context, batch []ingest.RowResult) error {
		if err := s.store.InsertRowBatch(ctx, jobID, batch); err != nil {
			return err
		}
		batchNo++
		for _, r := range batch {
			processed++
			if r.IsValid {
				valid++
			} else {
				invalid++
			}
		}
		s.progress.Publish(ctx, &Progress{
			JobID: jobID.String(), Phase: "parsing",
			ProcessedRows: processed, ValidRows: valid, InvalidRows: invalid,
			CurrentBatch: batchNo,
		})
		return nil
	})

	var res *ingest.ParseResult
	if ingest.IsWorkbook(src.Name()) {
		res, err = ingest.ParseWorkbook(ctx, rc, mappings, sink, opts)
	} else {
		res, err = ingest.ParseDelimited(ctx, rc, mappings, sink, opts)
	}
	if err != nil {
		return nil, s.failJob(ctx, jobID, err)
	}

	if err := s.store.SetParseCounts(ctx, jobID, res); err != nil {
		return nil, s.failJob(ctx, jobID, err)
	}
	if err := s.store.SetJobStatus(ctx, jobID, JobAwaitingReview, ""); err != nil {
		return nil, err
	}

	logger.Info("parse phase complete",
		"job_id", jobID.String(), "file", src.Name(),
		"total", res.TotalRows, "valid", res.ValidRows, "invalid", res.InvalidRows,
		"ms", res.ProcessingTimeMs)
	return res, nil
}

// Commit executes phase two over the previously-validated rows: classify
// each against the store and file dedupe sets, resolve ownership, and batch
// write leads and row dispositions. An invalid assignment config fails
// before any row is touched.
func (s *Service) Commit(ctx context.Context, jobID uuid.UUID, opts CommitOptions) (*CommitResult, error) {
	start := time.Now()
	if opts.DuplicateStrategy == "" {
		opts.DuplicateStrategy = StrategySkip
	}
	fields := opts.DedupeFields
	if len(fields) == 0 {
		fields = DefaultDedupeFields
	}

	// Precondition gate: configuration problems mean zero rows processed.
	if err := assign.ValidateConfig(opts.Assignment); err != nil {
		return nil, fmt.Errorf("assignment config: %w", err)
	}
	var users []assign.User
	if opts.Assignment.Mode == assign.ModeByColumn {
		var err error
		if users, err = s.store.ListUsers(ctx); err != nil {
			return nil, err
		}
	}
	assignCtx, err := assign.NewContext(opts.Assignment, users)
	if err != nil {
		return nil, fmt.Errorf("assignment config: %w", err)
	}

	lock := distlock.New(s.redis, s.leads.DB(), "import:commit:"+jobID.String(), commitLockTTL)
	held, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit lock: %w", err)
	}
	if !held {
		return nil, ErrCommitInProgress
	}
	defer lock.Release(context.Background())

	storeSet, err := dedupe.BuildStoreSet(ctx, s.leads, fields, s.dedupePageSize)
	if err != nil {
		return nil, s.failJob(ctx, jobID, err)
	}

	if err := s.store.SetJobStatus(ctx, jobID, JobCommitting, ""); err != nil {
		return nil, err
	}

	fileSet := make(dedupe.Set)
	result := &CommitResult{JobID: jobID.String()}
	afterRow := 0
	batchNo := 0
	var processed int64

	for {
		page, err := s.store.ValidRowPage(ctx, jobID, afterRow, s.commitPageSize)
		if err != nil {
			return nil, s.failJob(ctx, jobID, err)
		}
		if len(page) == 0 {
			break
		}
		batchNo++

		if err := s.commitPage(ctx, jobID, page, fields, opts, assignCtx, storeSet, fileSet, result); err != nil {
			return nil, s.failJob(ctx, jobID, err)
		}

		afterRow = page[len(page)-1].RowNumber
		processed += int64(len(page))
		s.progress.Publish(ctx, &Progress{
			JobID: jobID.String(), Phase: "committing",
			ProcessedRows: processed,
			ImportedRows:  int64(result.Imported),
			UpdatedRows:   int64(result.Updated),
			SkippedRows:   int64(result.Skipped),
			CurrentBatch:  batchNo,
		})
		if err := ctx.Err(); err != nil {
			return nil, s.failJob(ctx, jobID, err)
		}
		if len(page) < s.commitPageSize {
			break
		}
	}

	result.DurationSeconds = time.Since(start).Seconds()
	if err := s.store.SetCommitCounts(ctx, jobID, result); err != nil {
		return nil, s.failJob(ctx, jobID, err)
	}
	if err := s.store.SetJobStatus(ctx, jobID, JobCompleted, ""); err != nil {
		return nil, err
	}
	s.progress.Publish(ctx, &Progress{
		JobID: jobID.String(), Phase: "done",
		ProcessedRows: processed,
		ImportedRows:  int64(result.Imported),
		UpdatedRows:   int64(result.Updated),
		SkippedRows:   int64(result.Skipped),
		CurrentBatch:  batchNo,
	})

	logger.Info("commit phase complete",
		"job_id", jobID.String(),
		"imported", result.Imported, "updated", result.Updated, "skipped", result.Skipped,
		"seconds", result.DurationSeconds)
	return result, nil
}

// commitPage classifies one page of valid rows, resolves existing lead ids
// for store duplicates in chunked lookups, and applies every lead write and
// row disposition in a single transaction.
func (s *Service) commitPage(
	ctx context.Context,
	jobID uuid.UUID,
	page []StoredRow,
	fields []mapping.FieldKey,
	opts CommitOptions,
	assignCtx *assign.Context,
	storeSet, fileSet dedupe.Set,
	result *CommitResult,
) error {
	type classified struct {
		row   StoredRow
		match dedupe.Match
	}

	cls := make([]classified, 0, len(page))
	needIDs := make(map[mapping.FieldKey][]string)
	for _, r := range page {
		m := dedupe.Check(r.NormalizedData, fields, storeSet, fileSet)
		cls = append(cls, classified{row: r, match: m})
		switch {
		case !m.IsDuplicate:
			// Claim the values now so a later row in this page sees this
			// one as a file duplicate.
			fileSet.AddRow(r.NormalizedData, fields)
		case m.InStore && opts.DuplicateStrategy == StrategyUpdate:
			needIDs[m.Field] = append(needIDs[m.Field], m.Value)
		}
	}

	existingIDs := make(map[mapping.FieldKey]map[string]int64, len(needIDs))
	for field, values := range needIDs {
		ids, err := s.leads.FindIDsByValues(ctx, field, values)
		if err != nil {
			return err
		}
		existingIDs[field] = ids
	}

	tx, err := s.leads.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range cls {
		var d rowDisposition
		d.RowNumber = c.row.RowNumber

		switch {
		case !c.match.IsDuplicate:
			owner := s.resolveOwner(assignCtx, opts.Assignment, c.row)
			id, err := insertLead(ctx, tx, c.row.NormalizedData, owner)
			if err != nil {
				return err
			}
			d.Status, d.LeadID = RowImported, id
			result.Imported++

		case c.match.InStore && opts.DuplicateStrategy == StrategyUpdate:
			key := strings.ToLower(strings.TrimSpace(c.match.Value))
			id, ok := existingIDs[c.match.Field][key]
			if !ok {
				// Set said duplicate but the record vanished since the scan;
				// skip rather than insert a competing lead.
				d.Status, d.DuplicateField = RowSkippedDuplicate, c.match.Field
				result.Skipped++
				break
			}
			if err := updateLead(ctx, tx, id, c.row.NormalizedData, ""); err != nil {
				return err
			}
			d.Status, d.LeadID, d.DuplicateField = RowUpdated, id, c.match.Field
			fileSet.AddRow(c.row.NormalizedData, fields)
			result.Updated++

		default:
			d.Status, d.DuplicateField = RowSkippedDuplicate, c.match.Field
			result.Skipped++
		}

		if err := markRow(ctx, tx, jobID, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// resolveOwner advances the assignment resolver for one accepted row. For
// by-column mode the raw (pre-normalization) cell of the configured source
// column is used.
func (s *Service) resolveOwner(assignCtx *assign.Context, cfg assign.Config, row StoredRow) string {
	raw := ""
	if cfg.Mode == assign.ModeByColumn {
		raw = row.RawData[cfg.Column]
	}
	return assignCtx.Resolve(raw)
}

// failJob marks the job failed and returns the original error for the
// caller to surface. Partial progress already flushed stays; rollback is
// not attempted at this layer.
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error) error {
	logger.Error("import job failed", "job_id", jobID.String(), "error", cause.Error())
	if err := s.store.SetJobStatus(ctx, jobID, JobFailed, cause.Error()); err != nil {
		logger.Error("mark job failed", "job_id", jobID.String(), "error", err.Error())
	}
	return cause
}
