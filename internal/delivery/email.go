package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/reportengine/internal/timerange"
)

// SMTPConfig is the engine-level mail transport configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// EmailAdapter sends the artifact as an attachment over SMTP. Subject and
// body templates come from the delivery config blob and pass through the
// same substitution as queries, so {{start_date}} etc. work in both.
type EmailAdapter struct {
	cfg SMTPConfig

	// send is swappable for tests.
	send func(m *gomail.Message) error
}

type emailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
}

func NewEmailAdapter(cfg SMTPConfig) *EmailAdapter {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password)
	return &EmailAdapter{
		cfg:  cfg,
		send: func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

func (a *EmailAdapter) Send(ctx context.Context, methodConfig string, recipients []string, artifact Artifact, vars map[string]string) (Detail, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no active recipients for email delivery")
	}

	var ec emailConfig
	if methodConfig != "" {
		if err := json.Unmarshal([]byte(methodConfig), &ec); err != nil {
			return nil, fmt.Errorf("invalid email delivery config: %v", err)
		}
	}
	if ec.Subject == "" {
		ec.Subject = "Report: " + artifact.ReportName
	}
	if ec.Body == "" {
		ec.Body = "Please find attached report: " + artifact.ReportName
	}
	from := ec.From
	if from == "" {
		from = a.cfg.From
	}

	subject, err := timerange.Substitute(ec.Subject, vars)
	if err != nil {
		return nil, fmt.Errorf("email subject template: %v", err)
	}
	body, err := timerange.Substitute(ec.Body, vars)
	if err != nil {
		return nil, fmt.Errorf("email body template: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.Attach(artifact.Path, gomail.Rename(artifact.FileName))

	if err := a.send(m); err != nil {
		return nil, err
	}

	return Detail{
		"recipients": recipients,
		"subject":    subject,
	}, nil
}
