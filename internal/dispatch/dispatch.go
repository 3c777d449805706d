// Package dispatch hands stored reports to an administrator: selected reports
// by mail, or the whole table as a CSV and PDF backup.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/metrics"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
)

// ErrNoReports is returned when a dispatch or backup has nothing to send.
var ErrNoReports = errors.New("dispatch: no reports")

type Dispatcher struct {
	store   store.ReportStore
	mailer  notify.Mailer
	metrics *metrics.Metrics
	logger  logging.Logger
	now     func() time.Time
}

// New builds a Dispatcher. mailer and m may be nil; a nil mailer makes
// Dispatch fail with notify.ErrNotConfigured and Backup skip the e-mail.
func New(st store.ReportStore, mailer notify.Mailer, m *metrics.Metrics, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:   st,
		mailer:  mailer,
		metrics: m,
		logger:  logging.OrNop(logger).With(logging.F("component", "dispatch")),
		now:     time.Now,
	}
}

// Dispatch mails the selected reports in one message and marks them
// dispatched. Unknown ids are ignored. It returns the number of reports sent.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoReports
	}
	if !mailerEnabled(d.mailer) {
		return 0, notify.ErrNotConfigured
	}

	records, err := d.store.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("dispatch: load reports: %w", err)
	}
	if len(records) == 0 {
		return 0, ErrNoReports
	}

	msg := notify.Message{
		Subject: fmt.Sprintf("[QSSAGE] %d reports dispatched", len(records)),
		Body:    "Reported URLs:\n\n" + summarize(records),
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.metrics.SideEffectFailed("mail")
		return 0, fmt.Errorf("dispatch: %w", err)
	}

	sent := make([]string, 0, len(records))
	for _, r := range records {
		sent = append(sent, r.ID)
	}
	n, err := d.store.MarkDispatched(ctx, sent, d.now())
	if err != nil {
		// The mail is out; report the send but surface the bookkeeping failure.
		d.logger.Error("mark dispatched failed", logging.F("count", len(sent)), logging.Err(err))
		return len(records), fmt.Errorf("dispatch: mark dispatched: %w", err)
	}
	d.metrics.Dispatched(int(n))
	d.logger.Info("reports dispatched", logging.F("count", len(records)))
	return len(records), nil
}

func summarize(records []*store.ReportRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		location := r.Location
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(&b, "URL: %s\nLocation: %s\n", r.URL, location)
	}
	return b.String()
}

// mailerEnabled treats mailers that can report their own configuration
// (notify.SMTPMailer) as disabled when they say so.
func mailerEnabled(m notify.Mailer) bool {
	if m == nil {
		return false
	}
	if e, ok := m.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}
