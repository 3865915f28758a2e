package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrEmptyStatement is returned by Execute for blank input.
var ErrEmptyStatement = errors.New("empty statement")

// NullValue is how SQL NULL is rendered in a Result.
const NullValue = "NULL"

// Result is the outcome of one console statement.
type Result struct {
	Statement    string        `json:"statement"`
	IsQuery      bool          `json:"isQuery"`
	Columns      []string      `json:"columns,omitempty"`
	Rows         [][]string    `json:"rows,omitempty"`
	RowsAffected int64         `json:"rowsAffected"`
	Truncated    bool          `json:"truncated"`
	Duration     time.Duration `json:"duration"`
}

// queryKeywords start statements that return rows.
var queryKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"EXPLAIN": true,
	"VALUES":  true,
}

// IsQuery reports whether stmt returns rows.
func IsQuery(stmt string) bool {
	return queryKeywords[firstKeyword(stmt)]
}

func firstKeyword(stmt string) string {
	stmt = strings.TrimLeftFunc(stmt, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	end := strings.IndexFunc(stmt, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end == -1 {
		end = len(stmt)
	}
	return strings.ToUpper(stmt[:end])
}

// Execute runs a single statement. Queries return at most maxRows rows and
// report truncation; maxRows <= 0 means no limit.
func (d *Database) Execute(ctx context.Context, stmt string, maxRows int) (*Result, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil, ErrEmptyStatement
	}

	if IsQuery(stmt) {
		return d.query(ctx, stmt, maxRows)
	}
	return d.exec(ctx, stmt)
}

func (d *Database) query(ctx context.Context, stmt string, maxRows int) (*Result, error) {
	start := time.Now()
	var err error
	defer func() { d.recordQuery("query", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Statement: stmt, IsQuery: true, Columns: columns, Rows: [][]string{}}
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(res.Rows) == maxRows {
			res.Truncated = true
			break
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

func (d *Database) exec(ctx context.Context, stmt string) (*Result, error) {
	start := time.Now()
	var err error
	defer func() { d.recordQuery("exec", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var sqlRes sql.Result
	sqlRes, err = d.db.ExecContext(ctx, stmt)
	if err != nil {
		return nil, err
	}

	affected, err := sqlRes.RowsAffected()
	if err != nil {
		return nil, err
	}

	return &Result{
		Statement:    stmt,
		RowsAffected: affected,
		Duration:     time.Since(start),
	}, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return NullValue
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
