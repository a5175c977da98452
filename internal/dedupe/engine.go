package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/lead-importer/internal/mapping"
	"github.com/ignite/lead-importer/internal/normalize"
)

// Set is a membership set of "field:lowercased_trimmed_value" keys. Two
// instances exist per import run: one seeded from the persisted store
// (read-only once built) and one accumulating values committed from the
// current file.
type Set map[string]struct{}

// Key builds the canonical membership key for a field/value pair.
func Key(field mapping.FieldKey, value string) string {
	return string(field) + ":" + strings.ToLower(strings.TrimSpace(value))
}

func (s Set) Contains(field mapping.FieldKey, value string) bool {
	_, ok := s[Key(field, value)]
	return ok
}

// AddRow inserts a row's checked-field values. Callers must only do this for
// rows ultimately accepted toward the import, not for rows later skipped:
// the file set means "already committed", not "already seen".
func (s Set) AddRow(row normalize.NormalizedRow, fields []mapping.FieldKey) {
	for _, f := range fields {
		if v := row[f]; v != "" {
			s[Key(f, v)] = struct{}{}
		}
	}
}

// Record is one (id, value) tuple from the persisted store.
type Record struct {
	ID    int64
	Value string
}

// StoreReader pages through persisted lead values for one checked field,
// ordered by id, restricted to non-deleted records with a non-null value.
type StoreReader interface {
	Page(ctx context.Context, field mapping.FieldKey, afterID int64, limit int) ([]Record, error)
}

// DefaultPageSize is the cursor page size for store scans.
const DefaultPageSize = 1000

// BuildStoreSet scans the persisted store for every checked field and
// returns the membership set. Pagination is cursor-based (id > lastSeenId)
// and stops when a page comes back short.
func BuildStoreSet(ctx context.Context, store StoreReader, fields []mapping.FieldKey, pageSize int) (Set, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	set := make(Set)
	for _, field := range fields {
		var afterID int64
		for {
			page, err := store.Page(ctx, field, afterID, pageSize)
			if err != nil {
				return nil, fmt.Errorf("scan %s page after id %d: %w", field, afterID, err)
			}
			for _, rec := range page {
				if rec.Value != "" {
					set[Key(field, rec.Value)] = struct{}{}
				}
				afterID = rec.ID
			}
			if len(page) < pageSize {
				break
			}
		}
	}
	return set, nil
}

// Match classifies one row against the two membership sets.
type Match struct {
	IsDuplicate bool
	Field       mapping.FieldKey
	Value       string
	// InStore is true for a store duplicate, false for a file duplicate.
	// Store membership is checked first.
	InStore bool
}

// Check tests a row's checked fields in the caller-supplied priority order,
// short-circuiting on the first non-blank value present in either set.
func Check(row normalize.NormalizedRow, fields []mapping.FieldKey, storeSet, fileSet Set) Match {
	for _, f := range fields {
		v := row[f]
		if v == "" {
			continue
		}
		if storeSet.Contains(f, v) {
			return Match{IsDuplicate: true, Field: f, Value: v, InStore: true}
		}
		if fileSet.Contains(f, v) {
			return Match{IsDuplicate: true, Field: f, Value: v}
		}
	}
	return Match{}
}

// FileDuplicate is a group of rows in one file sharing a checked value.
// RowNumbers is ordered; the first entry is the first occurrence.
type FileDuplicate struct {
	Field      mapping.FieldKey `json:"field"`
	Value      string           `json:"value"`
	RowNumbers []int            `json:"row_numbers"`
}

// FindFileDuplicates scans already-validated rows and groups those sharing a
// checked-field value, case-insensitively. Groups with a single row are not
// reported.
func FindFileDuplicates(rows []normalize.RowValidationResult, fields []mapping.FieldKey) []FileDuplicate {
	byKey := make(map[string]*FileDuplicate)
	var order []string
	for _, r := range rows {
		for _, f := range fields {
			v := r.NormalizedData[f]
			if v == "" {
				continue
			}
			k := Key(f, v)
			g, ok := byKey[k]
			if !ok {
				g = &FileDuplicate{Field: f, Value: strings.ToLower(strings.TrimSpace(v))}
				byKey[k] = g
				order = append(order, k)
			}
			g.RowNumbers = append(g.RowNumbers, r.RowNumber)
		}
	}
	var groups []FileDuplicate
	for _, k := range order {
		if g := byKey[k]; len(g.RowNumbers) > 1 {
			groups = append(groups, *g)
		}
	}
	return groups
}
