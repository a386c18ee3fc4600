package mailer

import (
	"bytes"
	"html/template"
	"time"

	"github.com/portfolio/backend/internal/model"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hi {{.Name}},</p>
  <p>Thanks for reaching out through {{.SiteName}}. Your message has been
  received and I'll get back to you as soon as I can, usually within a
  couple of days.</p>
  <p>For your records, here is what you sent:</p>
  <blockquote style="border-left: 3px solid #ccc; padding-left: 1em; color: #555;">
    <p><strong>{{.Subject}}</strong></p>
    <p>{{.Message}}</p>
  </blockquote>
  <p>&mdash; {{.SiteName}}</p>
</body>
</html>
`))

var adminTmpl = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>New contact submission on {{.SiteName}}.</p>
  <table cellpadding="4">
    <tr><td><strong>Name</strong></td><td>{{.Name}}</td></tr>
    <tr><td><strong>Email</strong></td><td>{{.Email}}</td></tr>
    <tr><td><strong>Subject</strong></td><td>{{.Subject}}</td></tr>
    <tr><td><strong>Received</strong></td><td>{{.ReceivedAt}}</td></tr>
    <tr><td><strong>Spam score</strong></td><td>{{.SpamScore}}</td></tr>
  </table>
  <p>{{.Message}}</p>
</body>
</html>
`))

type templateData struct {
	SiteName   string
	Name       string
	Email      string
	Subject    string
	Message    string
	SpamScore  int
	ReceivedAt string
}

func newTemplateData(siteName string, rec *model.SubmissionRecord) templateData {
	name := rec.Name
	if name == "" {
		name = "there"
	}
	return templateData{
		SiteName:   siteName,
		Name:       name,
		Email:      rec.Email,
		Subject:    rec.Subject,
		Message:    rec.Message,
		SpamScore:  rec.SpamScore,
		ReceivedAt: rec.CreatedAt.Format(time.RFC1123),
	}
}

func renderConfirmation(siteName string, rec *model.SubmissionRecord) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, newTemplateData(siteName, rec)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderAdminNotification(siteName string, rec *model.SubmissionRecord) (string, error) {
	var buf bytes.Buffer
	if err := adminTmpl.Execute(&buf, newTemplateData(siteName, rec)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
