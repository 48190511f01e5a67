package database

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/talisker77/media-viewer/internal/logging"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// Query returns one page of index entries matching opts, newest first.
// Ordering is mod_time descending with path ascending as a tiebreaker,
// so pagination is stable across requests against the same snapshot.
func (d *Database) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query", start, err) }()

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	where, args := buildWhere(opts)

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var totalItems int
	countQuery := "SELECT COUNT(*) FROM media" + where
	if err = d.db.QueryRowContext(opCtx, countQuery, args...).Scan(&totalItems); err != nil {
		logging.Error("Query count failed: %v", err)
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(opts.PageSize)))

	result := &QueryResult{
		Items:        []MediaEntry{},
		TotalItems:   totalItems,
		TotalPages:   totalPages,
		CurrentPage:  opts.Page,
		ItemsPerPage: opts.PageSize,
		HasMore:      opts.Page < totalPages,
	}

	if totalItems == 0 {
		return result, nil
	}

	offset := (opts.Page - 1) * opts.PageSize

	selectQuery := `
		SELECT path, name, dir_path, type, size, mod_time, created_time, metadata
		FROM media` + where + `
		ORDER BY mod_time DESC, path ASC
		LIMIT ? OFFSET ?`
	selectArgs := append(args, opts.PageSize, offset)

	rows, qErr := d.db.QueryContext(opCtx, selectQuery, selectArgs...)
	if qErr != nil {
		err = qErr
		logging.Error("Query select failed: %v", err)
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("scan failed: %w", scanErr)
		}
		result.Items = append(result.Items, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	logging.Debug("Query returned %d/%d items in %v", len(result.Items), totalItems, time.Since(start))
	return result, nil
}

// buildWhere assembles the WHERE clause for a query. Each filter is
// independent and they combine with AND.
func buildWhere(opts QueryOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if opts.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, opts.Type)
	}

	if opts.Search != "" {
		pattern := "%" + escapeLike(opts.Search) + "%"
		conds = append(conds, `(name LIKE ? ESCAPE '\'
			OR dir_name LIKE ? ESCAPE '\'
			OR meta_title LIKE ? ESCAPE '\'
			OR meta_description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	// Date filters match the capture time when a sidecar provided one,
	// falling back to the file modification time. Both bounds inclusive.
	if opts.DateFrom != nil {
		conds = append(conds, "COALESCE(taken_time, mod_time) >= ?")
		args = append(args, opts.DateFrom.Unix())
	}
	if opts.DateTo != nil {
		conds = append(conds, "COALESCE(taken_time, mod_time) <= ?")
		args = append(args, opts.DateTo.Unix())
	}

	if opts.HasLocation {
		conds = append(conds, "has_location = 1")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
