package usecase

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
)

type purposeCopy struct {
	subject string
	line    string
	sms     string
}

var purposeCopies = map[string]purposeCopy{
	"register": {
		subject: "{{.app_name}} - Your Registration OTP",
		line:    "Use this code to complete your registration:",
		sms:     "{{.app_name}} - Your registration code is: {{.code}}. It expires in {{.expiry_minutes}} minutes.",
	},
	"login": {
		subject: "{{.app_name}} - Your Login OTP",
		line:    "Use this code to log in:",
		sms:     "{{.app_name}} - Your login code is: {{.code}}. It expires in {{.expiry_minutes}} minutes.",
	},
	"verify": {
		subject: "{{.app_name}} - Your Verification OTP",
		line:    "Use this code to verify your contact information:",
		sms:     "{{.app_name}} - Your verification code is: {{.code}}. It expires in {{.expiry_minutes}} minutes.",
	},
}

var fallbackCopy = purposeCopy{
	subject: "{{.app_name}} - Your OTP Code",
	line:    "Your OTP code is:",
	sms:     "Your code is: {{.code}}. It expires in {{.expiry_minutes}} minutes.",
}

const emailText = `{{.line}} {{.code}}

This code expires in {{.expiry_minutes}} minutes. If you did not request it, you can ignore this email.
{{if .support_email}}
Need help? Contact {{.support_email}}.{{end}}
`

const emailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>{{.line}}</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.code}}</p>
  <p>This code expires in {{.expiry_minutes}} minutes. If you did not request it, you can ignore this email.</p>
  {{if .support_email}}<p style="color: #777;">Need help? Contact <a href="mailto:{{.support_email}}">{{.support_email}}</a>.</p>{{end}}
  <p style="color: #777;">&copy; {{.year}} {{.app_name}}</p>
</body>
</html>
`

type purposeTemplates struct {
	subject *template.Template
	sms     *template.Template
	line    string
}

type templates struct {
	byPurpose map[string]purposeTemplates
	fallback  purposeTemplates
	text      *template.Template
	html      *htmltemplate.Template
}

func mustPurpose(name string, c purposeCopy) purposeTemplates {
	return purposeTemplates{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(c.subject)),
		sms:     template.Must(template.New(name + ".sms").Option("missingkey=zero").Parse(c.sms)),
		line:    c.line,
	}
}

func newTemplates() *templates {
	t := &templates{
		byPurpose: make(map[string]purposeTemplates, len(purposeCopies)),
		fallback:  mustPurpose("fallback", fallbackCopy),
		text:      template.Must(template.New("email.text").Option("missingkey=zero").Parse(emailText)),
		html:      htmltemplate.Must(htmltemplate.New("email.html").Option("missingkey=zero").Parse(emailHTML)),
	}
	for purpose, c := range purposeCopies {
		t.byPurpose[purpose] = mustPurpose(purpose, c)
	}
	return t
}

func (t *templates) forPurpose(purpose string) purposeTemplates {
	if pt, ok := t.byPurpose[purpose]; ok {
		return pt
	}
	return t.fallback
}

// Email renders subject, text and html bodies for purpose.
func (t *templates) Email(purpose string, data map[string]any) (entity.Rendered, error) {
	pt := t.forPurpose(purpose)
	data["line"] = pt.line

	var out entity.Rendered
	var buf bytes.Buffer

	if err := pt.subject.Execute(&buf, data); err != nil {
		return out, err
	}
	out.Subject = buf.String()

	buf.Reset()
	if err := t.text.Execute(&buf, data); err != nil {
		return out, err
	}
	out.TextBody = buf.String()

	buf.Reset()
	if err := t.html.Execute(&buf, data); err != nil {
		return out, err
	}
	out.HTMLBody = buf.String()

	return out, nil
}

// SMS renders the text message for purpose.
func (t *templates) SMS(purpose string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.forPurpose(purpose).sms.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
