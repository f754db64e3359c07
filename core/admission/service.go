package admission

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

var (
	ErrNotFound        = core.NewNotFoundError("application")
	ErrAlreadyReviewed = errors.New("application has already been reviewed")
	ErrAlreadyEnrolled = errors.New("student is already enrolled")

	// OrderingFields are the fields applications can be ordered by.
	OrderingFields  = []string{"submitted_at", "created_at", "status", "application_number"}
	defaultOrdering = []core.DBOrdering{{Field: "submitted_at", Ascending: false}}
)

type (
	Repository interface {
		// CreateApplication inserts the application and its students.
		CreateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		// GetApplication returns the application with its parent, students and their enrollments.
		GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (Application, error)
		QueryApplications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Application, error)
		// SetReviewed applies rev only if the application is still in the `from` status.
		// It reports whether the row was updated.
		SetReviewed(ctx context.Context, id string, from Status, rev Review, exec ...core.DBExecutor) (bool, error)
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetStats(ctx context.Context, exec ...core.DBExecutor) (Stats, error)
	}

	ServiceInterface interface {
		Submit(ctx context.Context, na NewApplication) (Application, error)
		Query(ctx context.Context, caller user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		GetByID(ctx context.Context, caller user.User, id string) (Application, error)
		QueryByParent(ctx context.Context, parentID string) ([]Application, error)
		Review(ctx context.Context, reviewer user.User, id string, ra ReviewApplication) (Application, error)
		Stats(ctx context.Context, caller user.User) (Stats, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		usrSvc   user.ServiceInterface
		feeSvc   fee.ServiceInterface
		notifSvc notification.ServiceInterface
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	usrSvc user.ServiceInterface,
	feeSvc fee.ServiceInterface,
	notifSvc notification.ServiceInterface,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
) *service {
	return &service{
		db:       db,
		repo:     repo,
		usrSvc:   usrSvc,
		feeSvc:   feeSvc,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		validate: validate,
		conf:     conf,
	}
}

// Submit records a new PENDING application, creating the parent account on first submission.
// The confirmation email is sent once everything is stored; failing to send it does not undo the submission.
func (svc *service) Submit(ctx context.Context, na NewApplication) (Application, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Application{}, err
	}

	var app Application
	var parent user.User
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if parent, _, err = svc.usrSvc.GetOrCreateParent(ctx, na.Parent, exec); err != nil {
			return errors.Wrap(err, "getting or creating parent")
		}

		now := time.Now().UTC()
		number, err := core.NewReference("APP", now, 6)
		if err != nil {
			return errors.Wrap(err, "generating application number")
		}

		students := make([]Student, 0, len(na.Students))
		for _, ns := range na.Students {
			students = append(students, Student{
				Surname:               ns.Surname,
				OtherName:             ns.OtherName,
				DateOfBirthDay:        ns.DateOfBirthDay,
				DateOfBirthMonth:      ns.DateOfBirthMonth,
				DateOfBirthYear:       ns.DateOfBirthYear,
				Gender:                ns.Gender,
				StateOfOrigin:         ns.StateOfOrigin,
				Nationality:           ns.Nationality,
				Religion:              ns.Religion,
				ClassSeekingAdmission: ns.ClassSeekingAdmission,
				CreatedAt:             now,
			})
		}

		app = Application{
			Number:      number,
			ParentID:    parent.ID,
			Status:      StatusPending,
			SubmittedAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
			Students:    students,
		}
		if app, err = svc.repo.CreateApplication(ctx, app, exec); err != nil {
			return errors.Wrap(err, "creating application")
		}

		_, err = svc.notifSvc.Create(ctx, notification.NewNotification{
			UserID:        parent.ID,
			ApplicationID: app.ID,
			Title:         "Application Submitted",
			Message:       fmt.Sprintf("Your application %s has been submitted successfully and is under review.", app.Number),
			Type:          notification.TypeApplicationSubmitted,
		}, exec)
		return err
	})
	if err != nil {
		return Application{}, err
	}

	app.Parent = &parent
	svc.sendSubmittedMail(parent, app)
	return app, nil
}

// Query returns all applications with their parent and students, newest submission first by default.
func (svc *service) Query(ctx context.Context, caller user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error) {
	if err := checkAdmin(caller); err != nil {
		return nil, err
	}
	ordering = core.AllowedOrderings(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	return svc.repo.QueryApplications(ctx, filter, ordering)
}

// GetByID is open to admins and to the parent who submitted the application.
func (svc *service) GetByID(ctx context.Context, caller user.User, id string) (Application, error) {
	if !caller.IsAuthenticated() {
		return Application{}, core.ErrUnauthenticated
	}
	app, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !caller.IsAdmin() && app.ParentID != caller.ID {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (svc *service) QueryByParent(ctx context.Context, parentID string) ([]Application, error) {
	return svc.repo.QueryApplications(ctx, &QueryFilter{ParentID: parentID}, defaultOrdering)
}

// Review moves a PENDING application to APPROVED or REJECTED.
//
// The transition is a compare-and-set: reviewing an application that is no longer pending fails with
// ErrAlreadyReviewed. On approval, every student gets one enrollment and the fee bundle, and the
// parent's credential is rotated to a new temporary one. All of it commits or none of it does.
// Emails go out after commit.
func (svc *service) Review(ctx context.Context, reviewer user.User, id string, ra ReviewApplication) (Application, error) {
	if err := checkAdmin(reviewer); err != nil {
		return Application{}, err
	}
	if err := ra.Validate(svc.validate); err != nil {
		return Application{}, err
	}

	var app Application
	var tempPwd string
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		var err error
		if app, err = svc.repo.GetApplication(ctx, id, exec); err != nil {
			return err
		}

		now := time.Now().UTC()
		rev := Review{Status: ra.Status, ReviewedBy: reviewer.ID, ReviewedAt: now}
		if ra.Status == StatusRejected {
			rev.RejectionReason = ra.RejectionReason
		}
		updated, err := svc.repo.SetReviewed(ctx, app.ID, StatusPending, rev, exec)
		if err != nil {
			return errors.Wrap(err, "setting application reviewed")
		}
		if !updated {
			return ErrAlreadyReviewed
		}
		app.Status = rev.Status
		app.ReviewedAt = &rev.ReviewedAt
		app.ReviewedBy = &rev.ReviewedBy
		app.UpdatedAt = now
		if rev.Status == StatusRejected {
			app.RejectionReason = &rev.RejectionReason
		}

		if app.Parent == nil {
			return errors.New("application loaded without its parent")
		}

		nn := notification.NewNotification{UserID: app.ParentID, ApplicationID: app.ID}
		if rev.Status == StatusApproved {
			year := strconv.Itoa(now.Year())
			for i, st := range app.Students {
				enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
					StudentID:    st.ID,
					AcademicYear: year,
					Grade:        st.ClassSeekingAdmission,
					Status:       EnrollmentActive,
					CreatedAt:    now,
				}, exec)
				if err != nil {
					return errors.Wrap(err, "creating enrollment")
				}
				fees, err := svc.feeSvc.CreateBundle(ctx, st.Info(), app.ParentID, year, now, exec)
				if err != nil {
					return errors.Wrap(err, "creating fee bundle")
				}
				app.Students[i].Enrollment = &enr
				app.Students[i].Fees = fees
			}

			parent, pwd, err := svc.usrSvc.IssueTemporaryPassword(ctx, *app.Parent, exec)
			if err != nil {
				return errors.Wrap(err, "issuing temporary password")
			}
			app.Parent = &parent
			tempPwd = pwd

			nn.Title = "Application Approved"
			nn.Message = fmt.Sprintf("Congratulations! Your application %s has been approved. Check your email for login details.", app.Number)
			nn.Type = notification.TypeApplicationApproved
		} else {
			nn.Title = "Application Update"
			nn.Message = fmt.Sprintf("Your application %s has been reviewed. Please check your email for details.", app.Number)
			nn.Type = notification.TypeApplicationRejected
		}
		_, err = svc.notifSvc.Create(ctx, nn, exec)
		return err
	})
	if err != nil {
		return Application{}, err
	}

	if app.Status == StatusApproved {
		svc.sendApprovedMail(*app.Parent, app, tempPwd)
	} else {
		svc.sendRejectedMail(*app.Parent, app)
	}
	return app, nil
}

func (svc *service) Stats(ctx context.Context, caller user.User) (Stats, error) {
	if err := checkAdmin(caller); err != nil {
		return Stats{}, err
	}
	return svc.repo.GetStats(ctx)
}

func checkAdmin(usr user.User) error {
	if !usr.IsAuthenticated() {
		return core.ErrUnauthenticated
	}
	if !usr.IsAdmin() {
		return core.ErrForbidden
	}
	return nil
}

type applicationMailData struct {
	ParentName        string
	ApplicationNumber string
	Students          []string
	Email             string
	TemporaryPassword string
	LoginURL          string
	Reason            string
}

func (svc *service) newMailData(parent user.User, app Application) applicationMailData {
	students := make([]string, 0, len(app.Students))
	for _, st := range app.Students {
		students = append(students, st.FullName())
	}
	return applicationMailData{
		ParentName:        parent.Name,
		ApplicationNumber: app.Number,
		Students:          students,
		Email:             parent.Email,
	}
}

func (svc *service) sendSubmittedMail(parent user.User, app Application) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      "Application Submitted",
		TemplateName: "application_submitted",
		TemplateData: svc.newMailData(parent, app),
	})
}

func (svc *service) sendApprovedMail(parent user.User, app Application, tempPwd string) {
	data := svc.newMailData(parent, app)
	data.TemporaryPassword = tempPwd
	data.LoginURL = svc.conf.FrontendBaseURL + "/login"
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      "Application Approved - Welcome",
		TemplateName: "application_approved",
		TemplateData: data,
	})
}

func (svc *service) sendRejectedMail(parent user.User, app Application) {
	data := svc.newMailData(parent, app)
	if app.RejectionReason != nil {
		data.Reason = *app.RejectionReason
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      "Application Update",
		TemplateName: "application_rejected",
		TemplateData: data,
	})
}
