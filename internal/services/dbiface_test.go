package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var errUnplanned = errors.New("unplanned statement")

type fakeCommandTag struct {
	rowsAffected int64
}

func (f fakeCommandTag) RowsAffected() int64 {
	return f.rowsAffected
}

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.scanFunc == nil {
		return fmt.Errorf("scanFunc not set")
	}
	return f.scanFunc(dest...)
}

// fakeDB hands out a single scripted transaction. Writes only happen inside a
// transaction, so Exec on the pool always fails.
type fakeDB struct {
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func dbBeginning(tx Tx) *fakeDB {
	return &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return nil, fmt.Errorf("%w: exec %q outside a transaction", errUnplanned, sql)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return fakeRow{scanFunc: func(dest ...any) error {
		return fmt.Errorf("%w: query row %q", errUnplanned, sql)
	}}
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return nil, fmt.Errorf("beginFunc not set")
}

// fakeTx scripts the statements of one transaction. Exec succeeds with zero
// rows affected unless ExecFunc says otherwise.
type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return fakeRow{scanFunc: func(dest ...any) error {
		return fmt.Errorf("%w: query row %q", errUnplanned, sql)
	}}
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx)
	}
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.RollbackFunc != nil {
		return f.RollbackFunc(ctx)
	}
	return nil
}

func rowFromValues(values ...any) Row {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignRow(dest, values)
	}}
}

// assignRow copies values into scan destinations, converting between integer
// widths the way pgx does for smallint and bigint columns.
func assignRow(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan dest mismatch: got %d want %d", len(dest), len(values))
	}
	for i, value := range values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Ptr || dv.IsNil() {
			return fmt.Errorf("dest %d not pointer", i)
		}
		target := dv.Elem()
		if value == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		vv := reflect.ValueOf(value)
		switch {
		case vv.Type().AssignableTo(target.Type()):
			target.Set(vv)
		case vv.Type().ConvertibleTo(target.Type()):
			target.Set(vv.Convert(target.Type()))
		case target.Kind() == reflect.Ptr && vv.Type().AssignableTo(target.Type().Elem()):
			ptr := reflect.New(target.Type().Elem())
			ptr.Elem().Set(vv)
			target.Set(ptr)
		default:
			return fmt.Errorf("cannot assign %T to %s", value, target.Type())
		}
	}
	return nil
}
