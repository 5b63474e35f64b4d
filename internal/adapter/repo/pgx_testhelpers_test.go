package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"escrow/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// valuesRow scans a fixed tuple.
func valuesRow(vals ...any) simpleRow {
	return simpleRow{scan: func(dest ...any) error { return assign(dest, vals) }}
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type tupleRows struct {
	testRowsBase
	tuples [][]any
	idx    int
	closed bool
}

func (r *tupleRows) Close()     { r.closed = true }
func (r *tupleRows) Err() error { return nil }

func (r *tupleRows) Next() bool {
	if r.idx >= len(r.tuples) {
		return false
	}
	r.idx++
	return true
}

func (r *tupleRows) Scan(dest ...any) error {
	return assign(dest, r.tuples[r.idx-1])
}

func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *int16:
			*d = v.(int16)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

// stubDB scripts responses by query text.
type stubDB struct {
	rows     map[string]simpleRow
	lists    map[string][][]any
	affected map[string]int64
	execErr  map[string]error

	txOpts  []pgx.TxOptions
	queries []string
	execs   []execCall
}

func newStubDB() *stubDB {
	return &stubDB{
		rows:     map[string]simpleRow{},
		lists:    map[string][][]any{},
		affected: map[string]int64{},
		execErr:  map[string]error{},
	}
}

func (s *stubDB) InTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, q infra.SQLExecutor) error) error {
	s.txOpts = append(s.txOpts, opts)
	return fn(ctx, s)
}

func (s *stubDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if err := s.execErr[query]; err != nil {
		return pgconn.CommandTag{}, err
	}
	n, ok := s.affected[query]
	if !ok {
		n = 1
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n)), nil
}

func (s *stubDB) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	s.queries = append(s.queries, query)
	return s.rows[query]
}

func (s *stubDB) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	s.queries = append(s.queries, query)
	return &tupleRows{tuples: s.lists[query]}, nil
}

var _ infra.TxRunner = (*stubDB)(nil)
