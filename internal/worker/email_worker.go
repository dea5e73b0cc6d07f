package worker

// email_worker.go
// Processes email jobs from QueueEmail: operational alerts over SMTP.

import (
	"context"
	"encoding/json"
	"fmt"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Sender delivers one email. *infra.Mailer implements it.
type Sender interface {
	Send(to []string, subject, body string) error
}

type EmailWorker struct {
	mailer Sender
}

func NewEmailWorker(mailer Sender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w: %w", ErrPermanent, err)
	}
	if len(payload.To) == 0 {
		return fmt.Errorf("email_worker: no recipients: %w", ErrPermanent)
	}
	return w.mailer.Send(payload.To, payload.Subject, payload.Body)
}
