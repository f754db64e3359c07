package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
)

type applicationRepository struct {
	db *DB
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

// load attaches parent, students and enrollments. mu must be held.
func (repo *applicationRepository) load(app admission.Application) admission.Application {
	if parent, ok := repo.db.data.users[app.ParentID]; ok {
		app.Parent = &parent
	}

	var ids []string
	for id, st := range repo.db.data.students {
		if st.ApplicationID == app.ID {
			ids = append(ids, id)
		}
	}
	repo.db.sortIDs(ids, func(id string) time.Time { return repo.db.data.students[id].CreatedAt }, false)

	app.Students = make([]admission.Student, 0, len(ids))
	for _, id := range ids {
		st := repo.db.data.students[id]
		if enr, ok := repo.db.data.enrollments[id]; ok {
			st.Enrollment = &enr
		}
		app.Students = append(app.Students, st)
	}
	return app
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app admission.Application, exec ...core.DBExecutor) (admission.Application, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.users[app.ParentID]; !ok {
		return admission.Application{}, core.NewNotFoundError("parent")
	}
	app.ID = repo.db.newID()
	students := make([]admission.Student, 0, len(app.Students))
	for _, st := range app.Students {
		st.ID = repo.db.newID()
		st.ApplicationID = app.ID
		st.Enrollment = nil
		st.Fees = nil
		repo.db.data.students[st.ID] = st
		students = append(students, st)
	}

	stored := app
	stored.Parent = nil
	stored.Students = nil
	repo.db.data.applications[app.ID] = stored

	app.Students = students
	return app, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id string, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	app, ok := repo.db.data.applications[id]
	if !ok {
		return admission.Application{}, admission.ErrNotFound
	}
	return repo.load(app), nil
}

func (repo *applicationRepository) QueryApplications(
	_ context.Context,
	filter *admission.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]admission.Application, 0)
	for _, app := range repo.db.data.applications {
		if filter != nil {
			if filter.Status != "" && app.Status != filter.Status {
				continue
			}
			if filter.ParentID != "" && app.ParentID != filter.ParentID {
				continue
			}
		}
		apps = append(apps, app)
	}

	sort.SliceStable(apps, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareApplications(apps[i], apps[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return repo.db.data.order[apps[i].ID] < repo.db.data.order[apps[j].ID]
	})

	for i := range apps {
		apps[i] = repo.load(apps[i])
	}
	return apps, nil
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareApplications(a, b admission.Application, field string) int {
	switch field {
	case "submitted_at":
		return compareTimes(a.SubmittedAt, b.SubmittedAt)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "application_number":
		return strings.Compare(a.Number, b.Number)
	}
	return 0
}

func (repo *applicationRepository) SetReviewed(
	_ context.Context,
	id string,
	from admission.Status,
	rev admission.Review,
	exec ...core.DBExecutor,
) (bool, error) {
	defer repo.db.lock(exec)()

	app, ok := repo.db.data.applications[id]
	if !ok {
		return false, admission.ErrNotFound
	}
	if app.Status != from {
		return false, nil
	}

	reviewedAt := rev.ReviewedAt.UTC()
	reviewedBy := rev.ReviewedBy
	app.Status = rev.Status
	app.ReviewedAt = &reviewedAt
	app.ReviewedBy = &reviewedBy
	app.UpdatedAt = reviewedAt
	app.RejectionReason = nil
	if rev.Status == admission.StatusRejected {
		reason := rev.RejectionReason
		app.RejectionReason = &reason
	}
	repo.db.data.applications[id] = app
	return true, nil
}

func (repo *applicationRepository) CreateEnrollment(_ context.Context, enr admission.Enrollment, exec ...core.DBExecutor) (admission.Enrollment, error) {
	defer repo.db.lock(exec)()

	if _, ok := repo.db.data.students[enr.StudentID]; !ok {
		return admission.Enrollment{}, core.NewNotFoundError("student")
	}
	if _, exists := repo.db.data.enrollments[enr.StudentID]; exists {
		return admission.Enrollment{}, admission.ErrAlreadyEnrolled
	}
	enr.ID = repo.db.newID()
	repo.db.data.enrollments[enr.StudentID] = enr
	return enr, nil
}

func (repo *applicationRepository) GetStats(_ context.Context, _ ...core.DBExecutor) (admission.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := admission.Stats{
		Total:         len(repo.db.data.applications),
		TotalStudents: len(repo.db.data.students),
	}
	for _, app := range repo.db.data.applications {
		switch app.Status {
		case admission.StatusPending:
			stats.Pending++
		case admission.StatusApproved:
			stats.Approved++
		case admission.StatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
