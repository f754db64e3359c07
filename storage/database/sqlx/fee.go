package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/fee"
)

// fees are always selected with their student and the parent owning the application
const feeSelect = `SELECT f.id, f.student_id, a.parent_id, f.academic_year, f.term_name, f.fee_type, f.amount, f.due_date,
	f.created_at, s.application_id, s.surname, s.other_name, s.class_seeking_admission
	FROM fee_structures f
	JOIN students s ON s.id = f.student_id
	JOIN applications a ON a.id = s.application_id`

const notPaidCond = `NOT EXISTS (SELECT 1 FROM payments p WHERE p.fee_structure_id = f.id AND p.status = 'COMPLETED')`

const paymentColumns = `id, payment_number, parent_id, fee_structure_id, amount, status, payment_method, transaction_id, paid_at, created_at`

type feeRow struct {
	ID                    string          `db:"id"`
	StudentID             string          `db:"student_id"`
	ParentID              string          `db:"parent_id"`
	AcademicYear          string          `db:"academic_year"`
	TermName              string          `db:"term_name"`
	FeeType               string          `db:"fee_type"`
	Amount                decimal.Decimal `db:"amount"`
	DueDate               time.Time       `db:"due_date"`
	CreatedAt             time.Time       `db:"created_at"`
	ApplicationID         string          `db:"application_id"`
	Surname               string          `db:"surname"`
	OtherName             string          `db:"other_name"`
	ClassSeekingAdmission string          `db:"class_seeking_admission"`
}

func (r feeRow) unrow() fee.FeeStructure {
	return fee.FeeStructure{
		ID:           r.ID,
		StudentID:    r.StudentID,
		ParentID:     r.ParentID,
		AcademicYear: r.AcademicYear,
		TermName:     r.TermName,
		FeeType:      fee.Type(r.FeeType),
		Amount:       r.Amount,
		DueDate:      r.DueDate.UTC(),
		CreatedAt:    r.CreatedAt.UTC(),
		Student: &fee.StudentInfo{
			ID:                    r.StudentID,
			ApplicationID:         r.ApplicationID,
			Surname:               r.Surname,
			OtherName:             r.OtherName,
			ClassSeekingAdmission: r.ClassSeekingAdmission,
		},
	}
}

type paymentRow struct {
	ID             string          `db:"id"`
	Number         string          `db:"payment_number"`
	ParentID       string          `db:"parent_id"`
	FeeStructureID string          `db:"fee_structure_id"`
	Amount         decimal.Decimal `db:"amount"`
	Status         string          `db:"status"`
	Method         string          `db:"payment_method"`
	TransactionID  null.String     `db:"transaction_id"`
	PaidAt         null.Time       `db:"paid_at"`
	CreatedAt      time.Time       `db:"created_at"`
}

func (r paymentRow) unrow() fee.Payment {
	p := fee.Payment{
		ID:             r.ID,
		Number:         r.Number,
		ParentID:       r.ParentID,
		FeeStructureID: r.FeeStructureID,
		Amount:         r.Amount,
		Status:         fee.PaymentStatus(r.Status),
		Method:         r.Method,
		TransactionID:  r.TransactionID.String,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.PaidAt.Valid {
		paidAt := r.PaidAt.Time.UTC()
		p.PaidAt = &paidAt
	}
	return p
}

type feeRepository struct {
	repository
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{repository{exec: exec}}
}

func (repo feeRepository) CreateFeeStructures(ctx context.Context, fees []fee.FeeStructure, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	q := `INSERT INTO fee_structures (student_id, academic_year, term_name, fee_type, amount, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	created := make([]fee.FeeStructure, 0, len(fees))
	for _, fs := range fees {
		err := sqlx.GetContext(
			ctx, repo.getExec(exec), &fs.ID, q,
			fs.StudentID, fs.AcademicYear, fs.TermName, fs.FeeType, fs.Amount, fs.DueDate.UTC(), fs.CreatedAt.UTC(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "inserting fee structure")
		}
		created = append(created, fs)
	}
	return created, nil
}

func (repo feeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	if !isUUID(id) {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	var row feeRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, feeSelect+` WHERE f.id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return fee.FeeStructure{}, fee.ErrNotFound
		}
		return fee.FeeStructure{}, errors.Wrap(err, "selecting fee structure")
	}
	fees := []fee.FeeStructure{row.unrow()}
	if err := repo.attachPayments(ctx, repo.getExec(exec), fees); err != nil {
		return fee.FeeStructure{}, err
	}
	return fees[0], nil
}

func (repo feeRepository) QueryFeeStructures(ctx context.Context, filter fee.QueryFilter, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	var conds []string
	var args []interface{}
	if filter.ParentID != "" {
		if !isUUID(filter.ParentID) {
			return []fee.FeeStructure{}, nil
		}
		args = append(args, filter.ParentID)
		conds = append(conds, "a.parent_id = $"+itoa(len(args)))
	}
	if filter.OutstandingOnly {
		conds = append(conds, notPaidCond)
	}

	q := feeSelect
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY f.due_date, f.created_at, f.id`

	fees, err := repo.selectFees(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return nil, err
	}
	return fees, repo.attachPayments(ctx, repo.getExec(exec), fees)
}

func (repo feeRepository) selectFees(ctx context.Context, exec core.DBExecutor, q string, args ...interface{}) ([]fee.FeeStructure, error) {
	var rows []feeRow
	if err := sqlx.SelectContext(ctx, exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting fee structures")
	}
	fees := make([]fee.FeeStructure, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.unrow())
	}
	return fees, nil
}

func (repo feeRepository) attachPayments(ctx context.Context, exec core.DBExecutor, fees []fee.FeeStructure) error {
	if len(fees) == 0 {
		return nil
	}
	ids := make([]string, 0, len(fees))
	idx := make(map[string]int, len(fees))
	for i := range fees {
		ids = append(ids, fees[i].ID)
		idx[fees[i].ID] = i
		fees[i].Payments = []fee.Payment{}
	}

	var rows []paymentRow
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE fee_structure_id::text = ANY($1) ORDER BY created_at DESC, id`
	if err := sqlx.SelectContext(ctx, exec, &rows, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "selecting payments")
	}
	for _, r := range rows {
		i := idx[r.FeeStructureID]
		fees[i].Payments = append(fees[i].Payments, r.unrow())
	}
	return nil
}

func (repo feeRepository) CreatePayment(ctx context.Context, payment fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	q := `INSERT INTO payments (payment_number, parent_id, fee_structure_id, amount, status, payment_method, transaction_id, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &payment.ID, q,
		payment.Number, payment.ParentID, payment.FeeStructureID, payment.Amount, payment.Status, payment.Method,
		null.NewString(payment.TransactionID, payment.TransactionID != ""), null.TimeFromPtr(payment.PaidAt), payment.CreatedAt.UTC(),
	)
	if err != nil {
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return payment, nil
}

func (repo feeRepository) QueryPayments(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]fee.Payment, error) {
	if !isUUID(parentID) {
		return []fee.Payment{}, nil
	}
	var rows []paymentRow
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE parent_id = $1 ORDER BY created_at DESC, id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, parentID); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	if len(rows) == 0 {
		return []fee.Payment{}, nil
	}

	feeIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		feeIDs = append(feeIDs, r.FeeStructureID)
	}
	fees, err := repo.selectFees(ctx, repo.getExec(exec), feeSelect+` WHERE f.id::text = ANY($1)`, pq.Array(feeIDs))
	if err != nil {
		return nil, err
	}
	if err = repo.attachPayments(ctx, repo.getExec(exec), fees); err != nil {
		return nil, err
	}
	feesByID := make(map[string]fee.FeeStructure, len(fees))
	for _, fs := range fees {
		feesByID[fs.ID] = fs
	}

	payments := make([]fee.Payment, 0, len(rows))
	for _, r := range rows {
		p := r.unrow()
		if fs, ok := feesByID[p.FeeStructureID]; ok {
			p.FeeStructure = &fs
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (repo feeRepository) QueryDueFees(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	q := feeSelect + ` WHERE f.due_date >= $1 AND f.due_date < $2 AND ` + notPaidCond + `
		AND NOT EXISTS (SELECT 1 FROM fee_reminders r WHERE r.fee_structure_id = f.id)
		ORDER BY f.due_date, f.id`
	return repo.selectFees(ctx, repo.getExec(exec), q, from.UTC(), to.UTC())
}

func (repo feeRepository) MarkReminded(ctx context.Context, feeID string, at time.Time, exec ...core.DBExecutor) error {
	q := `INSERT INTO fee_reminders (fee_structure_id, sent_at) VALUES ($1, $2) ON CONFLICT (fee_structure_id) DO NOTHING`
	_, err := repo.getExec(exec).ExecContext(ctx, q, feeID, at.UTC())
	return errors.Wrap(err, "inserting fee reminder")
}
