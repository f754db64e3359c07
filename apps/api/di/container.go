// Package di assembles the API process with a dig container.
package di

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/aqram/apps/api/echo"
	"github.com/trezcool/aqram/apps/api/jobs"
	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/contact"
	"github.com/trezcool/aqram/core/dashboard"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
	emailsvc "github.com/trezcool/aqram/services/email"
	logsvc "github.com/trezcool/aqram/services/logger"
	"github.com/trezcool/aqram/storage/database"
	inmemdb "github.com/trezcool/aqram/storage/database/inmem"
	sqlxrepos "github.com/trezcool/aqram/storage/database/sqlx"
)

const engineMemory = "memory"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the store's resources.
	DBCloser func() error

	storeOut struct {
		dig.Out
		Transactor core.Transactor
		UserRepo   user.Repository
		AppRepo    admission.Repository
		FeeRepo    fee.Repository
		NotifRepo  notification.Repository
		Closer     DBCloser
	}

	depsIn struct {
		dig.In
		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		UserSvc      user.ServiceInterface
		AdmissionSvc admission.ServiceInterface
		FeeSvc       fee.ServiceInterface
		NotifSvc     notification.ServiceInterface
		DashboardSvc dashboard.ServiceInterface
		ContactSvc   contact.ServiceInterface
	}
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

// newStore opens postgres (creating and migrating it if needed) or the in-memory store.
func newStore(conf *core.Config, loggerParam DBLoggerParam) storeOut {
	if conf.Database.Engine == engineMemory {
		db := inmemdb.Open()
		return storeOut{
			Transactor: db,
			UserRepo:   inmemdb.NewUserRepository(db),
			AppRepo:    inmemdb.NewApplicationRepository(db),
			FeeRepo:    inmemdb.NewFeeRepository(db),
			NotifRepo:  inmemdb.NewNotificationRepository(db),
			Closer:     func() error { return nil },
		}
	}

	ctx, cancel := newSetupContext()
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(ctx, db); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return storeOut{
		Transactor: database.NewTransactor(db),
		UserRepo:   sqlxrepos.NewUserRepository(db),
		AppRepo:    sqlxrepos.NewApplicationRepository(db),
		FeeRepo:    sqlxrepos.NewFeeRepository(db),
		NotifRepo:  sqlxrepos.NewNotificationRepository(db),
		Closer:     db.Close,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)
	return validate
}

func newDeps(in depsIn) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:         in.Conf,
		Logger:       in.Logger,
		Validate:     in.Validate,
		Translator:   in.Translator,
		UserSvc:      in.UserSvc,
		AdmissionSvc: in.AdmissionSvc,
		FeeSvc:       in.FeeSvc,
		NotifSvc:     in.NotifSvc,
		DashboardSvc: in.DashboardSvc,
		ContactSvc:   in.ContactSvc,
	}
}

func newServer(deps *echoapi.Deps) *echoapi.Server {
	return echoapi.NewServer(deps, nil)
}

func newScheduler(conf *core.Config, feeSvc fee.ServiceInterface, logger core.Logger) (*cron.Cron, error) {
	return jobs.NewScheduler(conf, feeSvc, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(fee.NewInstantGateway))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(notification.NewService, dig.As(new(notification.ServiceInterface))))
	must(c.Provide(fee.NewService, dig.As(new(fee.ServiceInterface))))
	must(c.Provide(admission.NewService, dig.As(new(admission.ServiceInterface))))
	must(c.Provide(dashboard.NewService, dig.As(new(dashboard.ServiceInterface))))
	must(c.Provide(contact.NewService, dig.As(new(contact.ServiceInterface))))
	must(c.Provide(newDeps))
	must(c.Provide(newServer))
	must(c.Provide(newScheduler))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
