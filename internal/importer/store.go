package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-importer/internal/assign"
	"github.com/ignite/lead-importer/internal/ingest"
	"github.com/ignite/lead-importer/internal/mapping"
	"github.com/ignite/lead-importer/internal/normalize"
)

// leadFieldColumns maps canonical fields to leads table columns, in insert
// order. assigned_to is handled separately: its column holds the resolved
// owner id, not the raw source value.
var leadFieldColumns = []mapping.FieldKey{
	mapping.FieldExternalID, mapping.FieldFirstName, mapping.FieldLastName,
	mapping.FieldEmail, mapping.FieldPhone, mapping.FieldCompany,
	mapping.FieldJobTitle, mapping.FieldAddress, mapping.FieldCity,
	mapping.FieldPostalCode, mapping.FieldCountry, mapping.FieldStatus,
	mapping.FieldSource, mapping.FieldNotes,
}

// Store persists import jobs, their per-row results and committed leads.
// The row table is the handoff between the parse and commit phases.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob registers a pending job with its resolved column mapping.
func (s *Store) CreateJob(ctx context.Context, filename string, mappings []mapping.ColumnMapping) (*Job, error) {
	job := &Job{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    JobPending,
		CreatedAt: time.Now(),
	}
	mappingJSON, err := json.Marshal(mappings)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lead_import_jobs (id, filename, field_mapping, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		job.ID, filename, mappingJSON, job.Status)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	return job, nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job := &Job{}
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, status, total_rows, valid_rows, invalid_rows,
		       imported_count, updated_count, skipped_count, error, created_at, updated_at
		FROM lead_import_jobs WHERE id = $1`, id).Scan(
		&job.ID, &job.Filename, &job.Status, &job.TotalRows, &job.ValidRows,
		&job.InvalidRows, &job.ImportedCount, &job.UpdatedCount, &job.SkippedCount,
		&errMsg, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Error = errMsg.String
	return job, nil
}

// SetJobStatus advances the job lifecycle, recording the failure message for
// JobFailed.
func (s *Store) SetJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lead_import_jobs SET status = $2, error = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`, id, status, errMsg)
	return err
}

// SetParseCounts records phase-one totals.
func (s *Store) SetParseCounts(ctx context.Context, id uuid.UUID, res *ingest.ParseResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lead_import_jobs
		SET total_rows = $2, valid_rows = $3, invalid_rows = $4, updated_at = NOW()
		WHERE id = $1`, id, res.TotalRows, res.ValidRows, res.InvalidRows)
	return err
}

// SetCommitCounts records phase-two totals.
func (s *Store) SetCommitCounts(ctx context.Context, id uuid.UUID, res *CommitResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lead_import_jobs
		SET imported_count = $2, updated_count = $3, skipped_count = $4, updated_at = NOW()
		WHERE id = $1`, id, res.Imported, res.Updated, res.Skipped)
	return err
}

// InsertRowBatch lands one parser batch. The batch is atomic: either every
// row is persisted or the transaction rolls back and the parse aborts.
func (s *Store) InsertRowBatch(ctx context.Context, jobID uuid.UUID, batch []ingest.RowResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lead_import_rows
			(job_id, row_number, raw_data, normalized_data, validation_errors, validation_warnings, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		status := RowValid
		if !r.IsValid {
			status = RowInvalid
		}
		rawJSON, _ := json.Marshal(r.RawData)
		normJSON, _ := json.Marshal(r.NormalizedData)
		var errsJSON, warnsJSON []byte
		if len(r.Errors) > 0 {
			errsJSON, _ = json.Marshal(r.Errors)
		}
		if len(r.Warnings) > 0 {
			warnsJSON, _ = json.Marshal(r.Warnings)
		}
		if _, err := stmt.ExecContext(ctx, jobID, r.RowNumber, rawJSON, normJSON,
			nullable(errsJSON), nullable(warnsJSON), status); err != nil {
			return fmt.Errorf("insert row %d: %w", r.RowNumber, err)
		}
	}
	return tx.Commit()
}

// StoredRow is one persisted row loaded back for the commit phase.
type StoredRow struct {
	RowNumber      int
	RawData        map[string]string
	NormalizedData normalize.NormalizedRow
}

// ValidRowPage loads valid rows after afterRow, ordered by row number, for
// keyset iteration during commit.
func (s *Store) ValidRowPage(ctx context.Context, jobID uuid.UUID, afterRow, limit int) ([]StoredRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number, raw_data, normalized_data
		FROM lead_import_rows
		WHERE job_id = $1 AND status = 'valid' AND row_number > $2
		ORDER BY row_number
		LIMIT $3`, jobID, afterRow, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []StoredRow
	for rows.Next() {
		var r StoredRow
		var rawJSON, normJSON []byte
		if err := rows.Scan(&r.RowNumber, &rawJSON, &normJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawJSON, &r.RawData); err != nil {
			return nil, fmt.Errorf("row %d raw data: %w", r.RowNumber, err)
		}
		if err := json.Unmarshal(normJSON, &r.NormalizedData); err != nil {
			return nil, fmt.Errorf("row %d normalized data: %w", r.RowNumber, err)
		}
		page = append(page, r)
	}
	return page, rows.Err()
}

// rowDisposition is the commit-phase outcome for one row, applied together
// with its lead write in one transaction per page.
type rowDisposition struct {
	RowNumber      int
	Status         RowStatus
	LeadID         int64 // 0 when no lead was written
	DuplicateField mapping.FieldKey
}

// insertLead writes a new lead inside the page transaction and returns its id.
func insertLead(ctx context.Context, tx *sql.Tx, row normalize.NormalizedRow, ownerID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO leads
			(external_id, first_name, last_name, email, phone, company, job_title,
			 address, city, postal_code, country, status, source, notes, assigned_to,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        NULLIF($15, ''), NOW(), NOW())
		RETURNING id`,
		leadArgs(row, ownerID)...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	return id, nil
}

// updateLead merges non-empty incoming fields into an existing lead,
// keeping current values where the import is blank.
func updateLead(ctx context.Context, tx *sql.Tx, leadID int64, row normalize.NormalizedRow, ownerID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE leads SET
			external_id = COALESCE(NULLIF($2, ''), external_id),
			first_name  = COALESCE(NULLIF($3, ''), first_name),
			last_name   = COALESCE(NULLIF($4, ''), last_name),
			email       = COALESCE(NULLIF($5, ''), email),
			phone       = COALESCE(NULLIF($6, ''), phone),
			company     = COALESCE(NULLIF($7, ''), company),
			job_title   = COALESCE(NULLIF($8, ''), job_title),
			address     = COALESCE(NULLIF($9, ''), address),
			city        = COALESCE(NULLIF($10, ''), city),
			postal_code = COALESCE(NULLIF($11, ''), postal_code),
			country     = COALESCE(NULLIF($12, ''), country),
			status      = COALESCE(NULLIF($13, ''), status),
			source      = COALESCE(NULLIF($14, ''), source),
			notes       = COALESCE(NULLIF($15, ''), notes),
			assigned_to = COALESCE(NULLIF($16, ''), assigned_to),
			updated_at  = NOW()
		WHERE id = $1`,
		append([]interface{}{leadID}, leadArgs(row, ownerID)...)...)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", leadID, err)
	}
	return nil
}

func leadArgs(row normalize.NormalizedRow, ownerID string) []interface{} {
	args := make([]interface{}, 0, len(leadFieldColumns)+1)
	for _, f := range leadFieldColumns {
		args = append(args, row[f])
	}
	return append(args, ownerID)
}

// markRow records the commit disposition of one row inside the page
// transaction.
func markRow(ctx context.Context, tx *sql.Tx, jobID uuid.UUID, d rowDisposition) error {
	var leadID interface{}
	if d.LeadID != 0 {
		leadID = d.LeadID
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE lead_import_rows
		SET status = $3, lead_id = $4, duplicate_field = NULLIF($5, '')
		WHERE job_id = $1 AND row_number = $2`,
		jobID, d.RowNumber, d.Status, leadID, string(d.DuplicateField))
	return err
}

// ListUsers loads the CRM user directory for assignment resolution.
func (s *Store) ListUsers(ctx context.Context) ([]assign.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, role FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []assign.User
	for rows.Next() {
		var u assign.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func nullable(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
