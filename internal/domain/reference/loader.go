package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// LoadCSV reads a reference table from a CSV file with a header row. A
// missing or empty file returns an error; callers treat any error as "no
// reference" and continue.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference csv: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, path)
}

// ReadCSV parses CSV reference data. Rows shorter than the header are kept;
// their missing cells are absent.
func ReadCSV(r io.Reader, source string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", source, ErrNoReference)
		}
		return nil, fmt.Errorf("read reference header: %w", err)
	}
	idx := columnIndex(append([]string(nil), header...))

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(idx))
		for f, i := range idx {
			if i >= len(rec) {
				continue
			}
			if v, ok := parseCell(rec[i]); ok {
				row[f] = v
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNoReference)
	}
	return NewTable(source, rows), nil
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Querier is the subset of pgxpool.Pool used to read a reference table.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres reads a reference table from Postgres. Columns are matched
// by name the same way CSV headers are.
func LoadPostgres(ctx context.Context, q Querier, table string) (*Table, error) {
	if table == "" {
		return nil, fmt.Errorf("reference table name is required")
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	rows, err := q.Query(ctx, "SELECT * FROM "+ident)
	if err != nil {
		return nil, fmt.Errorf("query reference table %s: %w", table, err)
	}
	return scanRows(rows, "postgres:"+table)
}

// Copier is the subset of pgxpool.Pool used to import a reference table.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// ImportPostgres copies t into an existing Postgres table whose columns are
// named after the canonical fields. Absent values are written as NULL.
func ImportPostgres(ctx context.Context, c Copier, table string, t *Table) (int64, error) {
	if t.Len() == 0 {
		return 0, ErrNoReference
	}
	if table == "" {
		return 0, fmt.Errorf("reference table name is required")
	}

	cols := make([]string, len(Fields))
	for i, f := range Fields {
		cols[i] = string(f)
	}

	src := pgx.CopyFromSlice(len(t.rows), func(i int) ([]any, error) {
		vals := make([]any, len(Fields))
		for j, f := range Fields {
			if v, ok := t.rows[i].Lookup(f); ok {
				vals[j] = v
			}
		}
		return vals, nil
	})

	n, err := c.CopyFrom(ctx, pgx.Identifier(strings.Split(table, ".")), cols, src)
	if err != nil {
		return n, fmt.Errorf("copy reference rows into %s: %w", table, err)
	}
	return n, nil
}

func scanRows(rows pgx.Rows, source string) (*Table, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	header := make([]string, len(fds))
	for i, fd := range fds {
		header[i] = fd.Name
	}
	idx := columnIndex(header)

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read reference row %d: %w", len(out)+1, err)
		}
		row := make(Row, len(idx))
		for f, i := range idx {
			if i >= len(vals) {
				continue
			}
			if v, ok := numeric(vals[i]); ok {
				row[f] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference rows: %w", err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNoReference)
	}
	return NewTable(source, out), nil
}

func numeric(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case int16:
		f = float64(x)
	case int:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		return parseCell(x)
	case pgtype.Numeric:
		fv, err := x.Float64Value()
		if err != nil || !fv.Valid {
			return 0, false
		}
		f = fv.Float64
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
