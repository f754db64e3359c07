package emailsvc

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
)

// consoleService writes MIME encoded messages to out instead of sending them. Used in DEV.
type consoleService struct {
	conf       *core.Config
	logger     core.Logger
	out        io.Writer
	subjPrefix string
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *consoleService {
	return &consoleService{
		conf:       conf,
		logger:     logger,
		out:        os.Stdout,
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			_ = svc.sendMessage(msg)
		}(msg)
	}
}

// sendMessage reports whether msg had something to send.
func (svc *consoleService) sendMessage(msg *core.EmailMessage) bool {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return false
	}
	if !msg.Sendable() {
		return false
	}
	if err := svc.write(*msg); err != nil {
		svc.logger.Error(fmt.Sprintf("writing email: %v", err), err)
		return false
	}
	return true
}

// write prints msg as a multipart/alternative MIME message.
func (svc *consoleService) write(msg core.EmailMessage) error {
	body := new(strings.Builder)
	parts := multipart.NewWriter(body)

	headers := [][2]string{
		{"From", svc.conf.DefaultFromEmail.String()},
		{"To", joinAddresses(msg.To)},
		{"Subject", svc.subjPrefix + msg.Subject},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + parts.Boundary()},
	}
	if msg.ReplyTo != nil {
		headers = append(headers, [2]string{"Reply-To", msg.ReplyTo.String()})
	}
	for _, h := range headers {
		_, _ = fmt.Fprintf(body, "%s: %s\r\n", h[0], h[1])
	}
	body.WriteString("\r\n")

	contents := []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", msg.TextContent},
		{"text/html; charset=utf-8", msg.HTMLContent},
	}
	for _, c := range contents {
		if c.content == "" {
			continue
		}
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {c.contentType}})
		if err != nil {
			return errors.Wrap(err, "creating "+c.contentType+" part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", c.content)
	}
	if err := parts.Close(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(svc.out, body.String())
	return err
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// ServiceMock renders and records messages synchronously without printing them.
type ServiceMock struct {
	consoleService

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ServiceMock)(nil)

func NewServiceMock(conf *core.Config, logger core.Logger) *ServiceMock {
	return &ServiceMock{
		consoleService: consoleService{
			conf:       conf,
			logger:     logger,
			out:        io.Discard,
			subjPrefix: "[" + conf.AppName + "] ",
		},
	}
}

func (svc *ServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sendMessage(msg) {
			svc.mu.Lock()
			svc.sent = append(svc.sent, *msg)
			svc.mu.Unlock()
		}
	}
}

// Sent returns a copy of the messages sent so far.
func (svc *ServiceMock) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// Last returns the latest message sent to addr, if any.
func (svc *ServiceMock) Last(addr string) (core.EmailMessage, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for i := len(svc.sent) - 1; i >= 0; i-- {
		for _, to := range svc.sent[i].To {
			if to.Address == addr {
				return svc.sent[i], true
			}
		}
	}
	return core.EmailMessage{}, false
}

func (svc *ServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
