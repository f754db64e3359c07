package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/aqram/fs"
)

const emailTmplDir = "templates/email"

// email template kinds, by file extension
const (
	textExt = ".txt"
	htmlExt = ".gohtml"
)

var emailTemplates = struct {
	sync.RWMutex
	byName map[string]emailTemplate
}{}

type (
	executor interface {
		Execute(w io.Writer, data interface{}) error
	}

	// emailTemplate holds the text and (optional) html variants of one email.
	emailTemplate struct {
		text executor
		html executor
	}

	EmailMessage struct {
		To      []mail.Address
		ReplyTo *mail.Address
		Subject string

		TemplateName string // without ext
		TemplateData interface{}

		// filled by Render
		TextContent string
		HTMLContent string
	}

	// TemplateContext is what every email template receives; per-email data lives under .Data
	TemplateContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from the named template.
// Unknown templates render nothing.
func (m *EmailMessage) Render(conf *Config) error {
	emailTemplates.RLock()
	tmpl, ok := emailTemplates.byName[m.TemplateName]
	emailTemplates.RUnlock()
	if !ok {
		return nil
	}

	tctx := TemplateContext{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	var err error
	if m.TextContent, err = execute(tmpl.text, tctx); err != nil {
		return errors.Wrapf(err, "rendering %s%s", m.TemplateName, textExt)
	}
	if m.HTMLContent, err = execute(tmpl.html, tctx); err != nil {
		return errors.Wrapf(err, "rendering %s%s", m.TemplateName, htmlExt)
	}
	return nil
}

func execute(tmpl executor, data interface{}) (string, error) {
	if tmpl == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *EmailMessage) Sendable() bool { return len(m.To) > 0 && m.TextContent != "" }

// ParseEmailTemplates loads every email template from the embedded filesystem.
// Files starting with "_" are layouts shared by the other templates.
func ParseEmailTemplates(logger Logger) {
	if err := parseTemplates(appfs.FS, logger); err != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
	}
}

func parseTemplates(fsys fs.FS, logger Logger) error {
	fps, err := fs.Glob(fsys, path.Join(emailTmplDir, "*"))
	if err != nil {
		return err
	}

	byName := make(map[string]emailTemplate)
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		layout := path.Join(emailTmplDir, "_base"+ext)
		name := strings.TrimSuffix(fname, ext)
		entry := byName[name]

		switch ext {
		case textExt:
			tmpl, err := texttmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing template %s: %v", fp, err), err)
				continue
			}
			entry.text = tmpl.Option("missingkey=error")
		case htmlExt:
			tmpl, err := htmltmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing template %s: %v", fp, err), err)
				continue
			}
			entry.html = tmpl.Option("missingkey=error")
		default:
			continue
		}
		byName[name] = entry
	}

	emailTemplates.Lock()
	emailTemplates.byName = byName
	emailTemplates.Unlock()
	return nil
}
