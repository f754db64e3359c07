// Package testutil wires the services on the in-memory store for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/contact"
	"github.com/trezcool/aqram/core/dashboard"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
	emailsvc "github.com/trezcool/aqram/services/email"
	logsvc "github.com/trezcool/aqram/services/logger"
	inmemdb "github.com/trezcool/aqram/storage/database/inmem"
)

// Env holds every service built on a fresh in-memory store.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ServiceMock

	UsrRepo   user.Repository
	AppRepo   admission.Repository
	FeeRepo   fee.Repository
	NotifRepo notification.Repository

	UserSvc      user.ServiceInterface
	NotifSvc     notification.ServiceInterface
	FeeSvc       fee.ServiceInterface
	AdmissionSvc admission.ServiceInterface
	DashboardSvc dashboard.ServiceInterface
	ContactSvc   contact.ServiceInterface
}

func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom rule registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)
	return validate
}

func NewEnv(gateway ...fee.Gateway) *Env {
	env := &Env{
		Conf:       core.NewTestConfig(),
		Logger:     logsvc.NewTestLogger(),
		DB:         inmemdb.Open(),
		Translator: NewTranslator(),
	}
	env.Validate = NewValidator(env.Translator)
	core.ParseEmailTemplates(env.Logger)
	env.Mail = emailsvc.NewServiceMock(env.Conf, env.Logger)

	env.UsrRepo = inmemdb.NewUserRepository(env.DB)
	env.AppRepo = inmemdb.NewApplicationRepository(env.DB)
	env.FeeRepo = inmemdb.NewFeeRepository(env.DB)
	env.NotifRepo = inmemdb.NewNotificationRepository(env.DB)

	gw := fee.NewInstantGateway()
	if len(gateway) > 0 {
		gw = gateway[0]
	}
	env.UserSvc = user.NewServiceMock(env.DB, env.UsrRepo, env.Mail, env.Conf)
	env.NotifSvc = notification.NewService(env.NotifRepo)
	env.FeeSvc = fee.NewService(
		env.DB, env.FeeRepo, gw, env.UserSvc, env.NotifSvc, env.Mail, env.Validate, env.Conf, env.Logger,
	)
	env.AdmissionSvc = admission.NewService(
		env.DB, env.AppRepo, env.UserSvc, env.FeeSvc, env.NotifSvc, env.Mail, env.Validate, env.Conf,
	)
	env.DashboardSvc = dashboard.NewService(env.UserSvc, env.AdmissionSvc, env.FeeSvc, env.NotifSvc)
	env.ContactSvc = contact.NewService(env.Mail, env.Validate, env.Conf)
	return env
}

// Reset empties the store and the outbox.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mail.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Phone:     "+243810000000",
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func NewStudent(surname, otherName string) admission.NewStudent {
	return admission.NewStudent{
		Surname:               surname,
		OtherName:             otherName,
		DateOfBirthDay:        "15",
		DateOfBirthMonth:      "May",
		DateOfBirthYear:       "2018",
		Gender:                admission.GenderFemale,
		StateOfOrigin:         "Lagos",
		Nationality:           "Nigerian",
		Religion:              "Christianity",
		ClassSeekingAdmission: "Kindergarten",
	}
}

// NewApplication returns a valid admission form for parentEmail with nStudents children.
func NewApplication(parentEmail string, nStudents int) admission.NewApplication {
	students := make([]admission.NewStudent, 0, nStudents)
	for i := 0; i < nStudents; i++ {
		students = append(students, NewStudent("Smith", fmt.Sprintf("Child%c", 'A'+i)))
	}
	return admission.NewApplication{
		Parent: user.NewParent{
			Name:      "John Smith",
			Email:     parentEmail,
			Phone:     "+1987654321",
			Address:   "123 Main Street, Anytown",
			Signature: "John Smith",
		},
		Students: students,
	}
}

func SubmitApplication(t *testing.T, svc admission.ServiceInterface, parentEmail string, nStudents int) admission.Application {
	app, err := svc.Submit(context.Background(), NewApplication(parentEmail, nStudents))
	if err != nil {
		t.Fatalf("submitApplication() failed: %v", err)
	}
	return app
}

// ApproveApplication submits then approves an application, returning it with its parent.
func ApproveApplication(
	t *testing.T,
	svc admission.ServiceInterface,
	admin user.User,
	parentEmail string,
	nStudents int,
) admission.Application {
	app := SubmitApplication(t, svc, parentEmail, nStudents)
	app, err := svc.Review(context.Background(), admin, app.ID, admission.ReviewApplication{Status: admission.StatusApproved})
	if err != nil {
		t.Fatalf("approveApplication() failed: %v", err)
	}
	return app
}
