// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// AssignmentLine is one site in an assignment email.
type AssignmentLine struct {
	Time             string // e.g., "08:30"
	Name             string
	CounterpartyName string
	Address          string
	Notes            string
}

// AssignmentEmailData holds data for the per-worker assignment email.
type AssignmentEmailData struct {
	Subject    string
	WorkerName string
	Date       string
	Header     string
	Footer     string
	Lines      []AssignmentLine
}

// BuildAssignmentEmail creates an assignment email with both HTML and text bodies.
func BuildAssignmentEmail(data AssignmentEmailData) Email {
	subject := data.Subject
	if subject == "" {
		subject = fmt.Sprintf("Work assignment for %s", data.Date)
	}
	return Email{
		To:       "", // Set by caller
		Subject:  subject,
		TextBody: buildAssignmentText(data),
		HTMLBody: buildAssignmentHTML(data),
	}
}

func buildAssignmentText(data AssignmentEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(data.WorkerName + "\n\n")
	if data.Header != "" {
		buf.WriteString(data.Header + "\n\n")
	}
	buf.WriteString(fmt.Sprintf("Date: %s\n\n", data.Date))
	if len(data.Lines) == 0 {
		buf.WriteString("You have no site assignments for this day.\n")
	}
	for _, l := range data.Lines {
		buf.WriteString(fmt.Sprintf("%s  %s\n", l.Time, l.Name))
		if l.CounterpartyName != "" {
			buf.WriteString("  " + l.CounterpartyName + "\n")
		}
		if l.Address != "" {
			buf.WriteString("  " + l.Address + "\n")
		}
		if l.Notes != "" {
			buf.WriteString("  " + l.Notes + "\n")
		}
		buf.WriteString("\n")
	}
	if data.Footer != "" {
		buf.WriteString(data.Footer + "\n")
	}
	return buf.String()
}

func buildAssignmentHTML(data AssignmentEmailData) string {
	tmpl := template.Must(template.New("assignment").Parse(assignmentHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

const assignmentHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Work assignment</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 32px 16px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 560px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 24px 8px; font-size: 18px; font-weight: 600; color: #1f2937;">{{.WorkerName}}</td>
          </tr>
          {{if .Header}}<tr><td style="padding: 0 24px 16px; font-size: 14px; color: #374151; white-space: pre-line;">{{.Header}}</td></tr>{{end}}
          <tr>
            <td style="padding: 0 24px 16px; font-size: 14px; color: #6b7280;">{{.Date}}</td>
          </tr>
          {{range .Lines}}
          <tr>
            <td style="padding: 12px 24px; border-top: 1px solid #e5e7eb; font-size: 14px; color: #1f2937;">
              <strong>{{.Time}} {{.Name}}</strong><br>
              {{if .CounterpartyName}}{{.CounterpartyName}}<br>{{end}}
              {{if .Address}}{{.Address}}<br>{{end}}
              {{if .Notes}}<span style="color: #6b7280;">{{.Notes}}</span>{{end}}
            </td>
          </tr>
          {{else}}
          <tr><td style="padding: 12px 24px; font-size: 14px; color: #1f2937;">You have no site assignments for this day.</td></tr>
          {{end}}
          {{if .Footer}}<tr><td style="padding: 16px 24px 24px; font-size: 12px; color: #6b7280; white-space: pre-line;">{{.Footer}}</td></tr>{{end}}
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`
