package fee

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

var ErrNotFound = core.NewNotFoundError("fee structure")

type (
	Repository interface {
		CreateFeeStructures(ctx context.Context, fees []FeeStructure, exec ...core.DBExecutor) ([]FeeStructure, error)
		// GetFeeStructure returns the fee with its student, parent and payments.
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		// QueryFeeStructures returns fees with their students and payments, earliest due date first.
		QueryFeeStructures(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]FeeStructure, error)
		CreatePayment(ctx context.Context, payment Payment, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns the parent's payments with fee and student context, newest first.
		QueryPayments(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]Payment, error)
		// QueryDueFees returns outstanding, not yet reminded fees due within [from, to).
		QueryDueFees(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]FeeStructure, error)
		MarkReminded(ctx context.Context, feeID string, at time.Time, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CreateBundle(ctx context.Context, student StudentInfo, parentID, academicYear string, now time.Time, exec core.DBExecutor) ([]FeeStructure, error)
		QueryForParent(ctx context.Context, parentID string, outstandingOnly bool) ([]FeeStructure, error)
		Pay(ctx context.Context, payer user.User, np NewPayment) (Payment, error)
		History(ctx context.Context, parentID string) ([]Payment, error)
		SendDueReminders(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		gateway  Gateway
		usrSvc   user.ServiceInterface
		notifSvc notification.ServiceInterface
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
		logger   core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	gateway Gateway,
	usrSvc user.ServiceInterface,
	notifSvc notification.ServiceInterface,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *service {
	return &service{
		db:       db,
		repo:     repo,
		gateway:  gateway,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		validate: validate,
		conf:     conf,
		logger:   logger,
	}
}

// CreateBundle bills the DefaultBundle to an approved student, due Billing.FeeDueDays after now.
func (svc *service) CreateBundle(
	ctx context.Context,
	student StudentInfo,
	parentID, academicYear string,
	now time.Time,
	exec core.DBExecutor,
) ([]FeeStructure, error) {
	now = now.UTC()
	dueDate := now.AddDate(0, 0, svc.conf.Billing.FeeDueDays)

	fees := make([]FeeStructure, 0, len(DefaultBundle))
	for _, item := range DefaultBundle {
		fees = append(fees, FeeStructure{
			StudentID:    student.ID,
			ParentID:     parentID,
			AcademicYear: academicYear,
			TermName:     item.TermName,
			FeeType:      item.Type,
			Amount:       item.Amount,
			DueDate:      dueDate,
			CreatedAt:    now,
		})
	}
	fees, err := svc.repo.CreateFeeStructures(ctx, fees, exec)
	return fees, errors.Wrap(err, "creating fee structures")
}

func (svc *service) QueryForParent(ctx context.Context, parentID string, outstandingOnly bool) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, QueryFilter{ParentID: parentID, OutstandingOnly: outstandingOnly})
}

// Pay records a payment of the full fee amount by payer.
// Paying an already settled fee is not rejected and yields another payment.
func (svc *service) Pay(ctx context.Context, payer user.User, np NewPayment) (Payment, error) {
	if !payer.IsAuthenticated() {
		return Payment{}, core.ErrUnauthenticated
	}
	if !payer.IsParent() {
		return Payment{}, core.ErrForbidden
	}
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}

	var payment Payment
	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		fs, err := svc.repo.GetFeeStructure(ctx, np.FeeStructureID, exec)
		if err != nil {
			return err
		}
		// parents only see their own children's fees
		if fs.ParentID != payer.ID {
			return ErrNotFound
		}

		now := time.Now().UTC()
		number, err := core.NewReference("PAY", now, 4)
		if err != nil {
			return errors.Wrap(err, "generating payment number")
		}

		receipt, err := svc.gateway.Charge(ctx, Charge{
			PaymentNumber: number,
			ParentID:      payer.ID,
			Amount:        fs.Amount,
			Method:        np.PaymentMethod,
		})
		if err != nil {
			return errors.Wrap(err, "charging payment")
		}

		payment = Payment{
			Number:         number,
			ParentID:       payer.ID,
			FeeStructureID: fs.ID,
			Amount:         fs.Amount,
			Status:         receipt.Status,
			Method:         np.PaymentMethod,
			TransactionID:  receipt.TransactionID,
			CreatedAt:      now,
		}
		if receipt.Status == PaymentCompleted {
			paidAt := receipt.SettledAt.UTC()
			payment.PaidAt = &paidAt
		}
		if payment, err = svc.repo.CreatePayment(ctx, payment, exec); err != nil {
			return errors.Wrap(err, "creating payment")
		}
		fs.Payments = append([]Payment{payment}, fs.Payments...)
		payment.FeeStructure = &fs

		if payment.Status == PaymentCompleted {
			_, err = svc.notifSvc.Create(ctx, notification.NewNotification{
				UserID:  payer.ID,
				Title:   "Payment Received",
				Message: fmt.Sprintf("Payment of $%s for %s has been processed successfully.", fs.Amount.String(), studentName(fs)),
				Type:    notification.TypePaymentReceived,
			}, exec)
		}
		return err
	})
	if err != nil {
		return Payment{}, err
	}

	if payment.Status == PaymentCompleted {
		svc.sendPaymentReceivedMail(payer, payment)
	}
	return payment, nil
}

func (svc *service) History(ctx context.Context, parentID string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, parentID)
}

// SendDueReminders notifies parents once about each outstanding fee due within Billing.ReminderDays of now.
// It returns the number of reminders sent. A failure on one fee does not stop the others.
func (svc *service) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	fees, err := svc.repo.QueryDueFees(ctx, now, now.AddDate(0, 0, svc.conf.Billing.ReminderDays))
	if err != nil {
		return 0, errors.Wrap(err, "querying due fees")
	}

	var sent int
	for _, fs := range fees {
		parent, err := svc.usrSvc.GetByID(ctx, fs.ParentID)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("fee reminder: finding parent %s: %v", fs.ParentID, err), err)
			continue
		}

		fs := fs
		err = svc.db.Transact(ctx, func(exec core.DBExecutor) error {
			_, err := svc.notifSvc.Create(ctx, notification.NewNotification{
				UserID: parent.ID,
				Title:  "Payment Due",
				Message: fmt.Sprintf(
					"%s fee of $%s for %s is due on %s.",
					fs.FeeType, fs.Amount.StringFixed(2), studentName(fs), fs.DueDate.Format("January 2, 2006"),
				),
				Type: notification.TypePaymentDue,
			}, exec)
			if err != nil {
				return err
			}
			return svc.repo.MarkReminded(ctx, fs.ID, now, exec)
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("fee reminder: %s: %v", fs.ID, err), err)
			continue
		}

		svc.sendFeeReminderMail(parent, fs)
		sent++
	}
	return sent, nil
}

type feeMailData struct {
	ParentName    string
	StudentName   string
	PaymentNumber string
	FeeType       Type
	TermName      string
	Currency      string
	Amount        string
	TransactionID string
	PaidAt        string
	DueDate       string
}

func (svc *service) sendPaymentReceivedMail(payer user.User, payment Payment) {
	data := feeMailData{
		ParentName:    payer.Name,
		PaymentNumber: payment.Number,
		Currency:      svc.conf.Billing.Currency,
		Amount:        payment.Amount.StringFixed(2),
		TransactionID: payment.TransactionID,
	}
	if payment.PaidAt != nil {
		data.PaidAt = payment.PaidAt.Format(time.RFC1123)
	}
	if fs := payment.FeeStructure; fs != nil {
		data.StudentName = studentName(*fs)
		data.FeeType = fs.FeeType
		data.TermName = fs.TermName
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: payer.Name, Address: payer.Email}},
		Subject:      "Payment Confirmation",
		TemplateName: "payment_received",
		TemplateData: data,
	})
}

func (svc *service) sendFeeReminderMail(parent user.User, fs FeeStructure) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      "Fee Payment Reminder",
		TemplateName: "fee_reminder",
		TemplateData: feeMailData{
			ParentName:  parent.Name,
			StudentName: studentName(fs),
			FeeType:     fs.FeeType,
			TermName:    fs.TermName,
			Currency:    svc.conf.Billing.Currency,
			Amount:      fs.Amount.StringFixed(2),
			DueDate:     fs.DueDate.Format("January 2, 2006"),
		},
	})
}

func studentName(fs FeeStructure) string {
	if fs.Student == nil {
		return "your child"
	}
	return fs.Student.FullName()
}
