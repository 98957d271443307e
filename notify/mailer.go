package notify

import (
	"DentalClinic/config"
	"DentalClinic/models"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Mailer emails the clinic when a patient asks for an appointment. A Mailer
// without an SMTP host only logs.
type Mailer struct {
	from   string
	send   func(m ...*gomail.Message) error
	logger zerolog.Logger
}

// NewMailer creates a Mailer from the SMTP settings.
func NewMailer(cfg config.SMTPConfig, logger zerolog.Logger) *Mailer {
	m := &Mailer{from: cfg.User, logger: logger}
	if cfg.Host != "" {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
		m.send = d.DialAndSend
	}
	return m
}

// Enabled reports whether messages are actually delivered.
func (m *Mailer) Enabled() bool {
	return m != nil && m.send != nil
}

// RequestCreated sends the new request to recipient. Delivery runs in the
// background and failures are only logged.
func (m *Mailer) RequestCreated(recipient string, request models.PatientRequest, patient models.Patient) {
	if !m.Enabled() || recipient == "" {
		return
	}
	msg := RequestMessage(m.from, recipient, request, patient)
	go func() {
		if err := m.send(msg); err != nil {
			m.logger.Warn().Err(err).Uint("request_id", request.ID).Msg("failed to send request notification")
			return
		}
		m.logger.Debug().Uint("request_id", request.ID).Str("to", recipient).Msg("request notification sent")
	}()
}

// RequestMessage builds the notification for a new patient request.
func RequestMessage(from, to string, request models.PatientRequest, patient models.Patient) *gomail.Message {
	medic := "any available medic"
	if request.MedicID != nil {
		medic = "medic " + *request.MedicID
	}
	summary := fmt.Sprintf("%s asked for an appointment on %s at %s with %s.",
		patient.FullName(), request.RequestedDate, request.RequestedTime, medic)

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "New appointment request")
	m.SetBody("text/plain", summary+"\nReason: "+request.Reason)
	m.AddAlternative("text/html", `
	<!DOCTYPE html>
	<html>
	<body style="font-family: Arial, sans-serif;">
		<h1>New appointment request</h1>
		<p>`+html.EscapeString(summary)+`</p>
		<p><strong>Reason:</strong> `+html.EscapeString(request.Reason)+`</p>
		<p>`+html.EscapeString(request.Notes)+`</p>
	</body>
	</html>
	`)
	return m
}
