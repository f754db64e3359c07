package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/user"
)

const applicationColumns = `id, application_number, parent_id, status, submitted_at, reviewed_at, reviewed_by, rejection_reason,
	created_at, updated_at`

const studentSelect = `SELECT s.id, s.application_id, s.surname, s.other_name, s.date_of_birth_day, s.date_of_birth_month,
	s.date_of_birth_year, s.gender, s.state_of_origin, s.nationality, s.religion, s.class_seeking_admission, s.created_at,
	e.id AS enrollment_id, e.academic_year AS enrollment_academic_year, e.grade AS enrollment_grade,
	e.status AS enrollment_status, e.created_at AS enrollment_created_at
	FROM students s
	LEFT JOIN enrollments e ON e.student_id = s.id`

type applicationRow struct {
	ID              string      `db:"id"`
	Number          string      `db:"application_number"`
	ParentID        string      `db:"parent_id"`
	Status          string      `db:"status"`
	SubmittedAt     time.Time   `db:"submitted_at"`
	ReviewedAt      null.Time   `db:"reviewed_at"`
	ReviewedBy      null.String `db:"reviewed_by"`
	RejectionReason null.String `db:"rejection_reason"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r applicationRow) unrow() admission.Application {
	app := admission.Application{
		ID:              r.ID,
		Number:          r.Number,
		ParentID:        r.ParentID,
		Status:          admission.Status(r.Status),
		SubmittedAt:     r.SubmittedAt.UTC(),
		ReviewedBy:      r.ReviewedBy.Ptr(),
		RejectionReason: r.RejectionReason.Ptr(),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Students:        []admission.Student{},
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time.UTC()
		app.ReviewedAt = &at
	}
	return app
}

type studentRow struct {
	ID                     string      `db:"id"`
	ApplicationID          string      `db:"application_id"`
	Surname                string      `db:"surname"`
	OtherName              string      `db:"other_name"`
	DateOfBirthDay         string      `db:"date_of_birth_day"`
	DateOfBirthMonth       string      `db:"date_of_birth_month"`
	DateOfBirthYear        string      `db:"date_of_birth_year"`
	Gender                 string      `db:"gender"`
	StateOfOrigin          string      `db:"state_of_origin"`
	Nationality            string      `db:"nationality"`
	Religion               string      `db:"religion"`
	ClassSeekingAdmission  string      `db:"class_seeking_admission"`
	CreatedAt              time.Time   `db:"created_at"`
	EnrollmentID           null.String `db:"enrollment_id"`
	EnrollmentAcademicYear null.String `db:"enrollment_academic_year"`
	EnrollmentGrade        null.String `db:"enrollment_grade"`
	EnrollmentStatus       null.String `db:"enrollment_status"`
	EnrollmentCreatedAt    null.Time   `db:"enrollment_created_at"`
}

func (r studentRow) unrow() admission.Student {
	st := admission.Student{
		ID:                    r.ID,
		ApplicationID:         r.ApplicationID,
		Surname:               r.Surname,
		OtherName:             r.OtherName,
		DateOfBirthDay:        r.DateOfBirthDay,
		DateOfBirthMonth:      r.DateOfBirthMonth,
		DateOfBirthYear:       r.DateOfBirthYear,
		Gender:                admission.Gender(r.Gender),
		StateOfOrigin:         r.StateOfOrigin,
		Nationality:           r.Nationality,
		Religion:              r.Religion,
		ClassSeekingAdmission: r.ClassSeekingAdmission,
		CreatedAt:             r.CreatedAt.UTC(),
	}
	if r.EnrollmentID.Valid {
		st.Enrollment = &admission.Enrollment{
			ID:           r.EnrollmentID.String,
			StudentID:    r.ID,
			AcademicYear: r.EnrollmentAcademicYear.String,
			Grade:        r.EnrollmentGrade.String,
			Status:       r.EnrollmentStatus.String,
			CreatedAt:    r.EnrollmentCreatedAt.Time.UTC(),
		}
	}
	return st
}

type applicationRepository struct {
	repository
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(exec core.DBExecutor) *applicationRepository {
	return &applicationRepository{repository{exec: exec}}
}

func (repo applicationRepository) CreateApplication(ctx context.Context, app admission.Application, exec ...core.DBExecutor) (admission.Application, error) {
	ex := repo.getExec(exec)
	q := `INSERT INTO applications (application_number, parent_id, status, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := sqlx.GetContext(
		ctx, ex, &app.ID, q,
		app.Number, app.ParentID, app.Status, app.SubmittedAt.UTC(), app.CreatedAt.UTC(), app.UpdatedAt.UTC(),
	)
	if err != nil {
		return admission.Application{}, errors.Wrap(err, "inserting application")
	}

	q = `INSERT INTO students (application_id, surname, other_name, date_of_birth_day, date_of_birth_month, date_of_birth_year,
		gender, state_of_origin, nationality, religion, class_seeking_admission, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	for i := range app.Students {
		st := &app.Students[i]
		st.ApplicationID = app.ID
		err = sqlx.GetContext(
			ctx, ex, &st.ID, q,
			st.ApplicationID, st.Surname, st.OtherName, st.DateOfBirthDay, st.DateOfBirthMonth, st.DateOfBirthYear,
			st.Gender, st.StateOfOrigin, st.Nationality, st.Religion, st.ClassSeekingAdmission, st.CreatedAt.UTC(),
		)
		if err != nil {
			return admission.Application{}, errors.Wrap(err, "inserting student")
		}
	}
	return app, nil
}

func (repo applicationRepository) GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (admission.Application, error) {
	if !isUUID(id) {
		return admission.Application{}, admission.ErrNotFound
	}
	ex := repo.getExec(exec)
	var row applicationRow
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return admission.Application{}, admission.ErrNotFound
		}
		return admission.Application{}, errors.Wrap(err, "selecting application")
	}

	apps := []admission.Application{row.unrow()}
	if err := repo.attach(ctx, ex, apps); err != nil {
		return admission.Application{}, err
	}
	return apps[0], nil
}

func (repo applicationRepository) QueryApplications(
	ctx context.Context,
	filter *admission.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]admission.Application, error) {
	var conds []string
	var args []interface{}
	if filter != nil {
		if filter.Status != "" {
			args = append(args, filter.Status)
			conds = append(conds, "status = $"+itoa(len(args)))
		}
		if filter.ParentID != "" {
			if !isUUID(filter.ParentID) {
				return []admission.Application{}, nil
			}
			args = append(args, filter.ParentID)
			conds = append(conds, "parent_id = $"+itoa(len(args)))
		}
	}

	q := `SELECT ` + applicationColumns + ` FROM applications`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering)

	ex := repo.getExec(exec)
	var rows []applicationRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting applications")
	}
	apps := make([]admission.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.unrow())
	}
	return apps, repo.attach(ctx, ex, apps)
}

// attach loads the parents and students (with their enrollment) of apps.
func (repo applicationRepository) attach(ctx context.Context, ex core.DBExecutor, apps []admission.Application) error {
	if len(apps) == 0 {
		return nil
	}
	appIDs := make([]string, 0, len(apps))
	parentIDs := make([]string, 0, len(apps))
	idx := make(map[string]int, len(apps))
	for i, app := range apps {
		appIDs = append(appIDs, app.ID)
		parentIDs = append(parentIDs, app.ParentID)
		idx[app.ID] = i
	}

	var parentRows []userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE id::text = ANY($1)`
	if err := sqlx.SelectContext(ctx, ex, &parentRows, q, pq.Array(parentIDs)); err != nil {
		return errors.Wrap(err, "selecting parents")
	}
	parents := make(map[string]user.User, len(parentRows))
	for _, r := range parentRows {
		parents[r.ID] = r.unrow()
	}

	var studentRows []studentRow
	q = studentSelect + ` WHERE s.application_id::text = ANY($1) ORDER BY s.created_at, s.id`
	if err := sqlx.SelectContext(ctx, ex, &studentRows, q, pq.Array(appIDs)); err != nil {
		return errors.Wrap(err, "selecting students")
	}
	for _, r := range studentRows {
		i := idx[r.ApplicationID]
		apps[i].Students = append(apps[i].Students, r.unrow())
	}

	for i := range apps {
		if p, ok := parents[apps[i].ParentID]; ok {
			apps[i].Parent = &p
		}
	}
	return nil
}

func (repo applicationRepository) SetReviewed(
	ctx context.Context,
	id string,
	from admission.Status,
	rev admission.Review,
	exec ...core.DBExecutor,
) (bool, error) {
	if !isUUID(id) {
		return false, admission.ErrNotFound
	}
	q := `UPDATE applications
		SET status = $3, reviewed_by = $4, reviewed_at = $5, rejection_reason = $6, updated_at = $5
		WHERE id = $1 AND status = $2`
	res, err := repo.getExec(exec).ExecContext(
		ctx, q,
		id, from, rev.Status, rev.ReviewedBy, rev.ReviewedAt.UTC(),
		null.NewString(rev.RejectionReason, rev.Status == admission.StatusRejected),
	)
	if err != nil {
		return false, errors.Wrap(err, "updating application")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "updating application")
	}
	return n == 1, nil
}

func (repo applicationRepository) CreateEnrollment(ctx context.Context, enr admission.Enrollment, exec ...core.DBExecutor) (admission.Enrollment, error) {
	q := `INSERT INTO enrollments (student_id, academic_year, grade, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &enr.ID, q,
		enr.StudentID, enr.AcademicYear, enr.Grade, enr.Status, enr.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return admission.Enrollment{}, admission.ErrAlreadyEnrolled
		}
		return admission.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo applicationRepository) GetStats(ctx context.Context, exec ...core.DBExecutor) (admission.Stats, error) {
	var stats admission.Stats
	var row struct {
		Total    int `db:"total"`
		Pending  int `db:"pending"`
		Approved int `db:"approved"`
		Rejected int `db:"rejected"`
		Students int `db:"students"`
	}
	q := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
		COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
		COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
		(SELECT COUNT(*) FROM students) AS students
		FROM applications`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q); err != nil {
		return stats, errors.Wrap(err, "counting applications")
	}
	stats.Total = row.Total
	stats.Pending = row.Pending
	stats.Approved = row.Approved
	stats.Rejected = row.Rejected
	stats.TotalStudents = row.Students
	return stats, nil
}
