package dispatch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
)

// BackupResult describes the files written by Backup.
type BackupResult struct {
	CSVPath string `json:"csv_path"`
	PDFPath string `json:"pdf_path"`
	Count   int    `json:"count"`
	Mailed  bool   `json:"mailed"`
}

var csvHeader = []string{
	"id", "url", "location", "latitude", "longitude", "note", "source",
	"risk", "score", "reasons", "detected_at", "dispatched", "dispatched_at",
}

// Backup exports every report to reports-<timestamp>.csv and .pdf under dir
// and mails both files when a mailer is configured. A mail failure is logged
// and leaves the files in place.
func (d *Dispatcher) Backup(ctx context.Context, dir string) (*BackupResult, error) {
	records, err := d.store.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("backup: list reports: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoReports
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}

	now := d.now().UTC()
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format("2006-01-02T15:04:05.000Z"))
	base := "reports-" + stamp

	csvData, err := encodeCSV(records)
	if err != nil {
		return nil, err
	}
	pdfData, err := renderPDF(records, now)
	if err != nil {
		return nil, err
	}

	res := &BackupResult{
		CSVPath: filepath.Join(dir, base+".csv"),
		PDFPath: filepath.Join(dir, base+".pdf"),
		Count:   len(records),
	}
	if err := os.WriteFile(res.CSVPath, csvData, 0o644); err != nil {
		return nil, fmt.Errorf("backup: write csv: %w", err)
	}
	if err := os.WriteFile(res.PDFPath, pdfData, 0o644); err != nil {
		return nil, fmt.Errorf("backup: write pdf: %w", err)
	}
	d.logger.Info("backup written", logging.F("count", len(records)), logging.F("csv", res.CSVPath))

	if !mailerEnabled(d.mailer) {
		return res, nil
	}
	err = d.mailer.Send(ctx, notify.Message{
		Subject: fmt.Sprintf("[QSSAGE] Report backup (%s)", stamp),
		Body:    fmt.Sprintf("%d reports were backed up.", len(records)),
		Attachments: []notify.Attachment{
			{Filename: base + ".csv", ContentType: "text/csv", Data: csvData},
			{Filename: base + ".pdf", ContentType: "application/pdf", Data: pdfData},
		},
	})
	if err != nil {
		d.metrics.SideEffectFailed("mail")
		d.logger.Warn("backup mail failed", logging.Err(err))
		return res, nil
	}
	res.Mailed = true
	return res, nil
}

func encodeCSV(records []*store.ReportRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("backup: csv header: %w", err)
	}
	for _, r := range records {
		dispatchedAt := ""
		if r.DispatchedAt != nil {
			dispatchedAt = r.DispatchedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ID, r.URL, r.Location, formatCoord(r.Latitude), formatCoord(r.Longitude),
			r.Note, r.Source, r.Risk, strconv.Itoa(r.Score), strings.Join(r.Reasons, "; "),
			r.DetectedAt.UTC().Format(time.RFC3339), strconv.FormatBool(r.Dispatched), dispatchedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("backup: csv row %s: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("backup: csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func renderPDF(records []*store.ReportRecord, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("QSSAGE report backup", true)
	pdf.SetCreationDate(now)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "QSSAGE report backup", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d reports, generated %s", len(records), now.Format(time.RFC3339)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(10, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(95, 7, "URL", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 7, "Risk", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 7, "Detected", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 8)
	for i, r := range records {
		if i%2 == 0 {
			pdf.SetFillColor(245, 247, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		risk := r.Risk
		if risk == "" {
			risk = "-"
		}
		pdf.CellFormat(10, 6, strconv.Itoa(i+1), "1", 0, "C", true, 0, "")
		pdf.CellFormat(95, 6, tr(truncate(r.URL, 70)), "1", 0, "L", true, 0, "")
		pdf.CellFormat(25, 6, risk, "1", 0, "C", true, 0, "")
		pdf.CellFormat(0, 6, r.DetectedAt.UTC().Format("2006-01-02 15:04"), "1", 1, "C", true, 0, "")
		if r.Location != "" || r.Note != "" {
			pdf.SetFont("Helvetica", "I", 7)
			pdf.MultiCell(0, 4, tr(detailLine(r)), "LRB", "L", false)
			pdf.SetFont("Helvetica", "", 8)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("backup: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func detailLine(r *store.ReportRecord) string {
	var parts []string
	if r.Location != "" {
		parts = append(parts, "Location: "+r.Location)
	}
	if r.Note != "" {
		parts = append(parts, "Note: "+r.Note)
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
