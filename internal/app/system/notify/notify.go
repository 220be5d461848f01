// Package notify defines the delivery boundary used by the dispatch
// controller and the adapters that implement it.
//
// A Notifier owns the message content and the delivery channel. The
// controller only cares whether Send returned nil.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/system/mailer"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.uber.org/zap"
)

// Notifier delivers one worker's assignment. sites are the sites where the
// worker currently holds a slot, ordered by start time.
type Notifier interface {
	Send(ctx context.Context, worker models.Worker, sites []models.Site) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, worker models.Worker, sites []models.Site) error

// Send calls f.
func (f Func) Send(ctx context.Context, worker models.Worker, sites []models.Site) error {
	return f(ctx, worker, sites)
}

// Sender is the part of mailer.Mailer used by MailNotifier.
type Sender interface {
	Send(ctx context.Context, e mailer.Email) error
}

// MailSettings holds the fixed parts of an assignment email.
type MailSettings struct {
	Subject  string
	Header   string
	Footer   string
	Location *time.Location // site times are shown in this zone; nil keeps the stored zone
}

// MailNotifier sends assignment emails through an SMTP Sender.
type MailNotifier struct {
	sender   Sender
	settings MailSettings
}

// NewMailNotifier creates a MailNotifier.
func NewMailNotifier(sender Sender, settings MailSettings) *MailNotifier {
	return &MailNotifier{sender: sender, settings: settings}
}

// Send builds the worker's email and hands it to the sender.
func (n *MailNotifier) Send(ctx context.Context, worker models.Worker, sites []models.Site) error {
	to := strings.TrimSpace(worker.Contact)
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("worker %s has no email contact", worker.Name)
	}
	e := mailer.BuildAssignmentEmail(mailData(worker, sites, n.settings))
	e.To = to
	return n.sender.Send(ctx, e)
}

func mailData(worker models.Worker, sites []models.Site, s MailSettings) mailer.AssignmentEmailData {
	data := mailer.AssignmentEmailData{
		Subject:    s.Subject,
		WorkerName: worker.Name,
		Date:       worker.Date,
		Header:     s.Header,
		Footer:     s.Footer,
	}
	for _, site := range sites {
		data.Lines = append(data.Lines, mailer.AssignmentLine{
			Time:             localTime(site.StartsAt, s.Location).Format("15:04"),
			Name:             site.Name,
			CounterpartyName: site.CounterpartyName,
			Address:          site.Address,
			Notes:            site.Notes,
		})
	}
	return data
}

func localTime(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

// LogNotifier writes each delivery to the log instead of sending it. It is
// meant for development and always succeeds.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

// Send logs the delivery.
func (n *LogNotifier) Send(ctx context.Context, worker models.Worker, sites []models.Site) error {
	names := make([]string, 0, len(sites))
	for _, s := range sites {
		names = append(names, s.StartsAt.Format("15:04")+" "+s.Name)
	}
	n.log.Info("notification (log only)",
		zap.String("date", worker.Date),
		zap.String("worker_id", worker.ID.Hex()),
		zap.String("worker", worker.Name),
		zap.String("contact", worker.Contact),
		zap.Strings("sites", names))
	return nil
}
