package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/lead-importer/internal/mapping"
)

// idLookupChunkSize bounds the value list per existing-id query, so a file
// full of duplicates never produces one round trip per row.
const idLookupChunkSize = 100

// leadColumns whitelists the lead table columns usable as dedupe fields.
var leadColumns = map[mapping.FieldKey]string{
	mapping.FieldEmail:      "email",
	mapping.FieldPhone:      "phone",
	mapping.FieldExternalID: "external_id",
}

// LeadStore reads persisted lead values from Postgres for dedupe-set
// construction and duplicate-id resolution.
type LeadStore struct {
	db *sql.DB
}

func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

// DB exposes the underlying handle so callers can open transactions that
// span lead writes and row-disposition updates.
func (s *LeadStore) DB() *sql.DB {
	return s.db
}

// Page implements StoreReader with keyset pagination over the leads table,
// skipping soft-deleted records and null values.
func (s *LeadStore) Page(ctx context.Context, field mapping.FieldKey, afterID int64, limit int) ([]Record, error) {
	col, ok := leadColumns[field]
	if !ok {
		return nil, fmt.Errorf("field %q is not a dedupe column", field)
	}

	query := fmt.Sprintf(`
		SELECT id, %s FROM leads
		WHERE deleted_at IS NULL AND %s IS NOT NULL AND %s <> '' AND id > $1
		ORDER BY id
		LIMIT $2`, col, col, col)

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Value); err != nil {
			return nil, err
		}
		page = append(page, rec)
	}
	return page, rows.Err()
}

// FindIDsByValues resolves known-duplicate values to existing lead ids,
// grouped by field and chunked to idLookupChunkSize per query. Values are
// matched case-insensitively. Used by the commit phase when the duplicate
// strategy is "update existing".
func (s *LeadStore) FindIDsByValues(ctx context.Context, field mapping.FieldKey, values []string) (map[string]int64, error) {
	col, ok := leadColumns[field]
	if !ok {
		return nil, fmt.Errorf("field %q is not a dedupe column", field)
	}

	ids := make(map[string]int64, len(values))
	query := fmt.Sprintf(`
		SELECT id, lower(%s) FROM leads
		WHERE deleted_at IS NULL AND lower(%s) = ANY($1)`, col, col)

	for start := 0; start < len(values); start += idLookupChunkSize {
		end := start + idLookupChunkSize
		if end > len(values) {
			end = len(values)
		}
		chunk := make([]string, 0, end-start)
		for _, v := range values[start:end] {
			chunk = append(chunk, strings.ToLower(strings.TrimSpace(v)))
		}

		rows, err := s.db.QueryContext(ctx, query, pq.Array(chunk))
		if err != nil {
			return nil, fmt.Errorf("lookup %s ids: %w", field, err)
		}
		for rows.Next() {
			var id int64
			var value string
			if err := rows.Scan(&id, &value); err != nil {
				rows.Close()
				return nil, err
			}
			ids[value] = id
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return ids, nil
}
