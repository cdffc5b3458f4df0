package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExec implements executor for unit tests. Exec calls are recorded;
// query results are routed by SQL substring, first matching rule wins.
type fakeExec struct {
	execCalls []string
	execRules []execRule
	rules     []queryRule
}

type execRule struct {
	substr string
	tag    string // pgconn command tag text, e.g. "UPDATE 3"
	err    error
}

type queryRule struct {
	substr string
	args   string // optional; matched against fmt.Sprint(args)
	row    []any  // QueryRow result
	rows   [][]any
	err    error
}

func (f *fakeExec) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, sql)
	for _, r := range f.execRules {
		if strings.Contains(sql, r.substr) {
			if r.err != nil {
				return pgconn.CommandTag{}, r.err
			}
			return pgconn.NewCommandTag(r.tag), nil
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeExec) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	for _, r := range f.rules {
		if !strings.Contains(sql, r.substr) {
			continue
		}
		if r.args != "" && !strings.Contains(fmt.Sprintf("%v", args), r.args) {
			continue
		}
		if r.err != nil {
			return fakeRow{err: r.err}
		}
		if r.row == nil {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: r.row}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeExec) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	for _, r := range f.rules {
		if !strings.Contains(sql, r.substr) {
			continue
		}
		if r.args != "" && !strings.Contains(fmt.Sprintf("%v", args), r.args) {
			continue
		}
		if r.err != nil {
			return nil, r.err
		}
		return &fakeRows{rows: r.rows}, nil
	}
	return &fakeRows{}, nil
}

// execCount returns how many recorded Exec calls contain the substring.
func (f *fakeExec) execCount(substr string) int {
	n := 0
	for _, c := range f.execCalls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fakeRow: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		if err := assignVal(d, r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assignVal(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func assignVal(dst, src any) error {
	switch d := dst.(type) {
	case *string:
		v, ok := src.(string)
		if !ok {
			return fmt.Errorf("fake scan: want string, have %T", src)
		}
		*d = v
	case *int64:
		switch v := src.(type) {
		case int:
			*d = int64(v)
		case int64:
			*d = v
		default:
			return fmt.Errorf("fake scan: want int, have %T", src)
		}
	case *int:
		switch v := src.(type) {
		case int:
			*d = v
		case int64:
			*d = int(v)
		default:
			return fmt.Errorf("fake scan: want int, have %T", src)
		}
	case *bool:
		v, ok := src.(bool)
		if !ok {
			return fmt.Errorf("fake scan: want bool, have %T", src)
		}
		*d = v
	default:
		return fmt.Errorf("fake scan: unsupported destination %T", dst)
	}
	return nil
}
