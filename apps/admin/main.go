package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
	emailsvc "github.com/trezcool/aqram/services/email"
	logsvc "github.com/trezcool/aqram/services/logger"
	"github.com/trezcool/aqram/storage/database"
	sqlxrepos "github.com/trezcool/aqram/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)

	// set up DB
	ctx := context.Background()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(ctx, db))

	// set up services
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)
	core.ParseEmailTemplates(appLogger)

	tx := database.NewTransactor(db)
	mailSvc := emailsvc.NewConsoleService(conf, appLogger)
	usrSvc := user.NewService(tx, sqlxrepos.NewUserRepository(db), mailSvc, conf)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db))
	feeSvc := fee.NewService(
		tx, sqlxrepos.NewFeeRepository(db), fee.NewInstantGateway(), usrSvc, notifSvc, mailSvc, validate, conf, appLogger,
	)
	appSvc := admission.NewService(
		tx, sqlxrepos.NewApplicationRepository(db), usrSvc, feeSvc, notifSvc, mailSvc, validate, conf,
	)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: usrSvc,
		appSvc: appSvc,
	}
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Printf("closing database: %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
