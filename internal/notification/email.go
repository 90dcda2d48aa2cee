package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/pkg/config"
)

// SendMailFunc matches smtp.SendMail
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var alertTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"deref": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"param": func(p *string) string {
		if p == nil {
			return "n/a"
		}
		return *p
	},
}).Parse(`
Water Quality Alert ({{.Severity}})
===================================

Location: {{if .Location}}{{.Location}}{{else}}unknown{{end}}
Type: {{.Type}}
Raised At: {{.RaisedAt.Format "2006-01-02 15:04:05 MST"}}
Alert ID: {{.AlertID}}
{{- if .Parameter}}

Parameter: {{param .Parameter}}
Measured Value: {{deref .Value}}
Threshold: {{deref .Threshold}}
{{- end}}

{{.Message}}

Please inspect the site and acknowledge the alert once handled.

---
Water Quality Monitoring
`))

// EmailNotifier e-mails critical alerts to the operator
type EmailNotifier struct {
	config   *config.SMTPConfig
	sendMail SendMailFunc
	logger   *zap.Logger
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{config: cfg, sendMail: smtp.SendMail, logger: logger}
}

// Configured reports whether SMTP credentials are present
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendAlertNotification mails a critical alert. Warnings are skipped.
func (e *EmailNotifier) SendAlertNotification(n *protocol.AlertNotification) error {
	if !n.IsCritical() {
		e.logger.Debug("Skipping non-critical alert", zap.String("alert_id", n.AlertID.String()))
		return nil
	}

	body, err := RenderAlert(n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(Subject(n), body)
}

// Subject returns the e-mail subject line for an alert
func Subject(n *protocol.AlertNotification) string {
	location := n.Location
	if location == "" {
		location = "unknown location"
	}
	return fmt.Sprintf("[%s] Water quality alert - %s", strings.ToUpper(string(n.Severity)), location)
}

// RenderAlert renders the plain-text e-mail body
func RenderAlert(n *protocol.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		e.logger.Info("SMTP not configured, skipping email",
			zap.String("subject", subject),
			zap.String("body", body))
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.config.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.sendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("Email sent", zap.String("subject", subject))
	return nil
}

// TestConnection dials the SMTP server
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
