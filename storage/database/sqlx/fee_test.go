package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core/fee"
)

const (
	feeUUID      = "9b2f6f0e-5d1c-4e0a-8c43-2a7e1f6d9b01"
	otherFeeUUID = "9b2f6f0e-5d1c-4e0a-8c43-2a7e1f6d9b02"
	paymentUUID  = "51f0c7a4-3e2b-4c8d-9a16-7d5e0b3c2f10"
)

var (
	feeCols = []string{
		"id", "student_id", "parent_id", "academic_year", "term_name", "fee_type", "amount", "due_date",
		"created_at", "application_id", "surname", "other_name", "class_seeking_admission",
	}
	paymentCols = []string{
		"id", "payment_number", "parent_id", "fee_structure_id", "amount", "status", "payment_method",
		"transaction_id", "paid_at", "created_at",
	}

	feeCreated = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	feeDue     = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	feesQuery     = regexp.QuoteMeta(`FROM fee_structures f`)
	feePaymentsQ  = regexp.QuoteMeta(`FROM payments WHERE fee_structure_id::text = ANY($1) ORDER BY created_at DESC, id`)
	notPaidQuoted = regexp.QuoteMeta(notPaidCond)
)

func addFeeRow(rows *sqlmock.Rows, id, feeType, amount string) *sqlmock.Rows {
	return rows.AddRow(
		id, testUUID, testUUID, "2024", "First Term", feeType, amount, feeDue,
		feeCreated, testUUID, "Smith", "Emma", "Kindergarten",
	)
}

func addPaymentRow(rows *sqlmock.Rows, feeID, status string) *sqlmock.Rows {
	return rows.AddRow(
		paymentUUID, "PAY123456ABCD", testUUID, feeID, "5000", status, "card",
		"TX-1", feeCreated, feeCreated,
	)
}

func TestFeeRepository_QueryFeeStructures(t *testing.T) {
	t.Run("invalid parent id skips the query", func(t *testing.T) {
		db, mock := newMock(t)
		fees, err := NewFeeRepository(db).QueryFeeStructures(context.Background(), fee.QueryFilter{ParentID: "lol"})
		require.NoError(t, err)
		assert.NotNil(t, fees)
		assert.Empty(t, fees)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outstanding for parent", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(feesQuery + `.+` + regexp.QuoteMeta(`WHERE a.parent_id = $1 AND `) + notPaidQuoted +
			regexp.QuoteMeta(` ORDER BY f.due_date, f.created_at, f.id`)).
			WithArgs(testUUID).
			WillReturnRows(addFeeRow(sqlmock.NewRows(feeCols), feeUUID, "TUITION", "5000"))
		mock.ExpectQuery(feePaymentsQ).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(paymentCols))

		fees, err := NewFeeRepository(db).QueryFeeStructures(context.Background(), fee.QueryFilter{ParentID: testUUID, OutstandingOnly: true})
		require.NoError(t, err)
		require.Len(t, fees, 1)
		fs := fees[0]
		assert.Equal(t, feeUUID, fs.ID)
		assert.Equal(t, fee.TypeTuition, fs.FeeType)
		assert.True(t, decimal.NewFromInt(5000).Equal(fs.Amount))
		assert.Equal(t, feeDue, fs.DueDate)
		require.NotNil(t, fs.Student)
		assert.Equal(t, "Smith Emma", fs.Student.FullName())
		assert.NotNil(t, fs.Payments)
		assert.True(t, fs.IsOutstanding())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("payments decide what is outstanding", func(t *testing.T) {
		db, mock := newMock(t)
		rows := sqlmock.NewRows(feeCols)
		addFeeRow(rows, feeUUID, "TUITION", "5000")
		addFeeRow(rows, otherFeeUUID, "BOOKS", "300")
		mock.ExpectQuery(feesQuery + `.+` + regexp.QuoteMeta(`JOIN applications a ON a.id = s.application_id ORDER BY f.due_date`)).
			WillReturnRows(rows)
		mock.ExpectQuery(feePaymentsQ).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(addPaymentRow(sqlmock.NewRows(paymentCols), feeUUID, "COMPLETED"))

		fees, err := NewFeeRepository(db).QueryFeeStructures(context.Background(), fee.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, fees, 2)
		assert.False(t, fees[0].IsOutstanding())
		require.Len(t, fees[0].Payments, 1)
		assert.Equal(t, "TX-1", fees[0].Payments[0].TransactionID)
		require.NotNil(t, fees[0].Payments[0].PaidAt)
		assert.True(t, fees[1].IsOutstanding())
		assert.True(t, decimal.NewFromInt(300).Equal(fee.Total(fees, true)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(feesQuery).WillReturnError(errBoom)

		_, err := NewFeeRepository(db).QueryFeeStructures(context.Background(), fee.QueryFilter{})
		assert.Equal(t, errBoom, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFeeRepository_GetFeeStructure(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		db, mock := newMock(t)
		_, err := NewFeeRepository(db).GetFeeStructure(context.Background(), "lol")
		assert.Equal(t, fee.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("found with payments", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(feesQuery + `.+` + regexp.QuoteMeta(`WHERE f.id = $1`)).
			WithArgs(feeUUID).
			WillReturnRows(addFeeRow(sqlmock.NewRows(feeCols), feeUUID, "TUITION", "5000"))
		mock.ExpectQuery(feePaymentsQ).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(addPaymentRow(sqlmock.NewRows(paymentCols), feeUUID, "COMPLETED"))

		fs, err := NewFeeRepository(db).GetFeeStructure(context.Background(), feeUUID)
		require.NoError(t, err)
		assert.Equal(t, testUUID, fs.ParentID)
		assert.Len(t, fs.Payments, 1)
		assert.False(t, fs.IsOutstanding())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFeeRepository_QueryDueFees(t *testing.T) {
	from := time.Date(2024, 9, 25, 8, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	q := feesQuery + `.+` + regexp.QuoteMeta(`WHERE f.due_date >= $1 AND f.due_date < $2 AND `) + notPaidQuoted +
		regexp.QuoteMeta(` AND NOT EXISTS (SELECT 1 FROM fee_reminders r WHERE r.fee_structure_id = f.id) ORDER BY f.due_date, f.id`)

	t.Run("unpaid and unreminded in window", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).
			WithArgs(from, to).
			WillReturnRows(addFeeRow(sqlmock.NewRows(feeCols), feeUUID, "TUITION", "5000"))

		fees, err := NewFeeRepository(db).QueryDueFees(context.Background(), from, to)
		require.NoError(t, err)
		require.Len(t, fees, 1)
		assert.Equal(t, feeUUID, fees[0].ID)
		assert.Equal(t, testUUID, fees[0].ParentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WithArgs(from, to).WillReturnError(errBoom)

		_, err := NewFeeRepository(db).QueryDueFees(context.Background(), from, to)
		assert.Equal(t, errBoom, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFeeRepository_QueryPayments(t *testing.T) {
	paymentsQ := regexp.QuoteMeta(`FROM payments WHERE parent_id = $1 ORDER BY created_at DESC, id`)

	t.Run("invalid parent id", func(t *testing.T) {
		db, mock := newMock(t)
		payments, err := NewFeeRepository(db).QueryPayments(context.Background(), "lol")
		require.NoError(t, err)
		assert.NotNil(t, payments)
		assert.Empty(t, payments)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(paymentsQ).WithArgs(testUUID).WillReturnRows(sqlmock.NewRows(paymentCols))

		payments, err := NewFeeRepository(db).QueryPayments(context.Background(), testUUID)
		require.NoError(t, err)
		assert.NotNil(t, payments)
		assert.Empty(t, payments)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with their fee and its payments", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(paymentsQ).
			WithArgs(testUUID).
			WillReturnRows(addPaymentRow(sqlmock.NewRows(paymentCols), feeUUID, "COMPLETED"))
		mock.ExpectQuery(feesQuery + `.+` + regexp.QuoteMeta(`WHERE f.id::text = ANY($1)`)).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(addFeeRow(sqlmock.NewRows(feeCols), feeUUID, "TUITION", "5000"))
		mock.ExpectQuery(feePaymentsQ).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(addPaymentRow(sqlmock.NewRows(paymentCols), feeUUID, "COMPLETED"))

		payments, err := NewFeeRepository(db).QueryPayments(context.Background(), testUUID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		p := payments[0]
		assert.Equal(t, fee.PaymentCompleted, p.Status)
		require.NotNil(t, p.FeeStructure)
		assert.Equal(t, feeUUID, p.FeeStructure.ID)
		assert.False(t, p.FeeStructure.IsOutstanding())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
