// Package contact forwards messages from the public contact form to the admissions inbox.
package contact

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aqram/core"
)

type Message struct {
	Name    string `json:"name" validate:"required,notblank,min=2"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=10,phone"`
	Subject string `json:"subject" validate:"required,notblank,min=5"`
	Message string `json:"message" validate:"required,notblank,min=10"`
}

func (m *Message) Validate(validate *validator.Validate) error {
	m.Name = core.CleanString(m.Name)
	m.Email = core.CleanString(m.Email, true /* lower */)
	m.Phone = core.CleanString(m.Phone)
	m.Subject = core.CleanString(m.Subject)
	m.Message = core.CleanString(m.Message)
	return validate.Struct(m)
}

type (
	ServiceInterface interface {
		Send(ctx context.Context, msg Message) error
	}

	service struct {
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *service {
	return &service{mailSvc: mailSvc, validate: validate, conf: conf}
}

// Send emails msg to the admissions inbox, with the sender as reply-to.
func (svc *service) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(svc.validate); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.conf.ContactEmail},
		ReplyTo:      &mail.Address{Name: msg.Name, Address: msg.Email},
		Subject:      "Contact Form: " + msg.Subject,
		TemplateName: "contact_message",
		TemplateData: msg,
	})
	return nil
}
