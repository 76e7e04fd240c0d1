package postgres

import (
	"context"
	"database/sql"
	"testing"

	"gorm.io/gorm"
)

type stubConnPool struct{}

func (stubConnPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, nil
}

func (stubConnPool) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (stubConnPool) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (stubConnPool) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

type stubTxPool struct{ stubConnPool }

func (stubTxPool) Commit() error   { return nil }
func (stubTxPool) Rollback() error { return nil }

func TestInTransaction(t *testing.T) {
	plain := &gorm.DB{Statement: &gorm.Statement{ConnPool: stubConnPool{}}}
	if inTransaction(plain) {
		t.Error("plain connection reported as transaction-bound")
	}

	tx := &gorm.DB{Statement: &gorm.Statement{ConnPool: stubTxPool{}}}
	if !inTransaction(tx) {
		t.Error("transaction-bound connection not detected")
	}

	if inTransaction(nil) {
		t.Error("nil db reported as transaction-bound")
	}
}
