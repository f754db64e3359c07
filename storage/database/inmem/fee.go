package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

// withStudent must be called with mu held.
func (repo *feeRepository) withStudent(fs fee.FeeStructure) fee.FeeStructure {
	if st, ok := repo.db.data.students[fs.StudentID]; ok {
		info := st.Info()
		fs.Student = &info
		if app, ok := repo.db.data.applications[st.ApplicationID]; ok {
			fs.ParentID = app.ParentID
		}
	}
	return fs
}

// paymentsOf returns the fee's payments, newest first. mu must be held.
func (repo *feeRepository) paymentsOf(feeID string) []fee.Payment {
	var ids []string
	for id, p := range repo.db.data.payments {
		if p.FeeStructureID == feeID {
			ids = append(ids, id)
		}
	}
	repo.db.sortIDs(ids, func(id string) time.Time { return repo.db.data.payments[id].CreatedAt }, true)

	payments := make([]fee.Payment, 0, len(ids))
	for _, id := range ids {
		payments = append(payments, repo.db.data.payments[id])
	}
	return payments
}

// query returns the matching fees with students and payments, earliest due date first. mu must be held.
func (repo *feeRepository) query(match func(fs fee.FeeStructure) bool) []fee.FeeStructure {
	var ids []string
	for id, fs := range repo.db.data.fees {
		fs = repo.withStudent(fs)
		fs.Payments = repo.paymentsOf(id)
		if match(fs) {
			ids = append(ids, id)
		}
	}
	repo.db.sortIDs(ids, func(id string) time.Time { return repo.db.data.fees[id].DueDate }, false)

	fees := make([]fee.FeeStructure, 0, len(ids))
	for _, id := range ids {
		fs := repo.withStudent(repo.db.data.fees[id])
		fs.Payments = repo.paymentsOf(id)
		fees = append(fees, fs)
	}
	return fees
}

func (repo *feeRepository) CreateFeeStructures(_ context.Context, fees []fee.FeeStructure, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	defer repo.db.lock(exec)()

	created := make([]fee.FeeStructure, 0, len(fees))
	for _, fs := range fees {
		if _, ok := repo.db.data.students[fs.StudentID]; !ok {
			return nil, core.NewNotFoundError("student")
		}
		fs.ID = repo.db.newID()
		fs.Student = nil
		fs.Payments = nil
		repo.db.data.fees[fs.ID] = fs
		created = append(created, fs)
	}
	return created, nil
}

func (repo *feeRepository) GetFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) (fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fs, ok := repo.db.data.fees[id]
	if !ok {
		return fee.FeeStructure{}, fee.ErrNotFound
	}
	fs = repo.withStudent(fs)
	fs.Payments = repo.paymentsOf(id)
	return fs, nil
}

func (repo *feeRepository) QueryFeeStructures(_ context.Context, filter fee.QueryFilter, _ ...core.DBExecutor) ([]fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.query(func(fs fee.FeeStructure) bool {
		if filter.ParentID != "" && fs.ParentID != filter.ParentID {
			return false
		}
		return !filter.OutstandingOnly || fs.IsOutstanding()
	}), nil
}

func (repo *feeRepository) CreatePayment(_ context.Context, payment fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.fees[payment.FeeStructureID]; !ok {
		return fee.Payment{}, fee.ErrNotFound
	}
	payment.ID = repo.db.newID()
	payment.FeeStructure = nil
	repo.db.data.payments[payment.ID] = payment
	return payment, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, parentID string, _ ...core.DBExecutor) ([]fee.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id, p := range repo.db.data.payments {
		if p.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	repo.db.sortIDs(ids, func(id string) time.Time { return repo.db.data.payments[id].CreatedAt }, true)

	payments := make([]fee.Payment, 0, len(ids))
	for _, id := range ids {
		p := repo.db.data.payments[id]
		if fs, ok := repo.db.data.fees[p.FeeStructureID]; ok {
			fs = repo.withStudent(fs)
			fs.Payments = repo.paymentsOf(fs.ID)
			p.FeeStructure = &fs
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (repo *feeRepository) QueryDueFees(_ context.Context, from, to time.Time, _ ...core.DBExecutor) ([]fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.query(func(fs fee.FeeStructure) bool {
		if _, reminded := repo.db.data.reminders[fs.ID]; reminded {
			return false
		}
		return !fs.DueDate.Before(from) && fs.DueDate.Before(to) && fs.IsOutstanding()
	}), nil
}

func (repo *feeRepository) MarkReminded(_ context.Context, feeID string, at time.Time, exec ...core.DBExecutor) error {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.fees[feeID]; !ok {
		return fee.ErrNotFound
	}
	if _, ok := repo.db.data.reminders[feeID]; !ok {
		repo.db.data.reminders[feeID] = at
	}
	return nil
}
