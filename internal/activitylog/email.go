package activitylog

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
	"rmasync/internal/logger"
)

// AlertSubject is the subject of every alert email.
const AlertSubject = "An error occurred while connecting with Run my Accounts API"

var alertTemplate = template.Must(template.New("alert").Parse(`<html>
<body>
<p>{{.Subject}}</p>
<table cellpadding="4" border="1">
<tr><th align="left">Time</th><td>{{.Entry.Time.Format "2006-01-02 15:04:05"}}</td></tr>
<tr><th align="left">Status</th><td>{{.Entry.Status}}</td></tr>
<tr><th align="left">Section</th><td>{{.Entry.Section}} {{.Entry.SectionID}}</td></tr>
<tr><th align="left">Mode</th><td>{{.Entry.Mode}}</td></tr>
<tr><th align="left">Run</th><td>{{.Entry.RunID}}</td></tr>
</table>
<pre>{{.Entry.Message}}</pre>
</body>
</html>
`))

// EmailConfig configures the SMTP alerter.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// SMTPAlerter sends alerts as HTML email.
type SMTPAlerter struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	log  zerolog.Logger

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewAlerter returns an SMTP alerter, or a LoggingAlerter when no SMTP host is configured.
func NewAlerter(cfg EmailConfig) Alerter {
	log := logger.WithComponent("alert")

	if cfg.Host == "" {
		log.Debug().Msg("SMTP host not configured, alerts are only logged")
		return &LoggingAlerter{log: log}
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPAlerter{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
		to:   splitRecipients(cfg.To),
		log:  log,
		send: smtp.SendMail,
	}
}

// Alert renders the entry and sends it to the configured recipients.
func (a *SMTPAlerter) Alert(ctx context.Context, entry Entry) error {
	const op = "Alert"

	if len(a.to) == 0 {
		return fmt.Errorf("%s: no recipient configured", op)
	}

	msg, err := buildAlertMessage(a.from, a.to, entry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.send(a.addr, a.auth, a.from, a.to, msg); err != nil {
		return fmt.Errorf("%s: smtp error: %w", op, err)
	}

	a.log.Info().Strs("to", a.to).Str("section", entry.Section).Msg("Alert email sent")
	return nil
}

// LoggingAlerter writes alerts to the process log instead of sending them.
type LoggingAlerter struct {
	log zerolog.Logger
}

// Alert logs the entry.
func (a *LoggingAlerter) Alert(ctx context.Context, entry Entry) error {
	a.log.Warn().
		Str("subject", AlertSubject).
		Str("section", entry.Section).
		Str("section_id", entry.SectionID).
		Msg(entry.Message)
	return nil
}

func buildAlertMessage(from string, to []string, entry Entry) ([]byte, error) {
	var body bytes.Buffer
	err := alertTemplate.Execute(&body, struct {
		Subject string
		Entry   Entry
	}{AlertSubject, entry})
	if err != nil {
		return nil, fmt.Errorf("failed to render alert: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", AlertSubject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func splitRecipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
