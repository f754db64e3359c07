package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
)

func TestTransactor_Transact(t *testing.T) {
	errFn := errors.New("fn failed")
	insert := func(ctx context.Context) func(exec core.DBExecutor) error {
		return func(exec core.DBExecutor) error {
			_, err := exec.ExecContext(ctx, "INSERT INTO fee_reminders")
			return err
		}
	}

	tests := []struct {
		name      string
		expect    func(mock sqlmock.Sqlmock)
		fn        func(ctx context.Context) func(exec core.DBExecutor) error
		wantErr   error
		wantPanic bool
	}{
		{
			name: "commit",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO fee_reminders").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			fn: insert,
		},
		{
			name: "rollback on error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO fee_reminders").WillReturnError(errFn)
				mock.ExpectRollback()
			},
			fn:      insert,
			wantErr: errFn,
		},
		{
			name: "rollback on panic",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn: func(context.Context) func(exec core.DBExecutor) error {
				return func(core.DBExecutor) error { panic("boom") }
			},
			wantPanic: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.expect(mock)

			ctx := context.Background()
			tr := NewTransactor(sqlx.NewDb(db, driverName))
			if tt.wantPanic {
				assert.Panics(t, func() { _ = tr.Transact(ctx, tt.fn(ctx)) })
			} else {
				assert.Equal(t, tt.wantErr, errors.Cause(tr.Transact(ctx, tt.fn(ctx))))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
