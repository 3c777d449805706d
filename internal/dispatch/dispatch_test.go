package dispatch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func seed(t *testing.T, urls ...string) (*store.SQLiteStore, []string) {
	t.Helper()
	st, err := store.NewSQLiteStore(&testutil.DummyLogger{}, store.Config{Path: store.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var ids []string
	for i, u := range urls {
		rec := &store.ReportRecord{URL: u, Source: store.SourceScan, Risk: "DANGEROUS", Score: 40 + i}
		if i == 0 {
			rec.Location = "Gangnam Station exit 3"
			rec.Note = "sticker over a parking QR"
		}
		out, err := st.Insert(context.Background(), rec)
		require.NoError(t, err)
		ids = append(ids, out.ID)
	}
	return st, ids
}

func newDispatcher(st store.ReportStore, m notify.Mailer) *Dispatcher {
	d := New(st, m, nil, &testutil.DummyLogger{})
	d.now = func() time.Time { return fixedNow }
	return d
}

func TestDispatch_MailsSelectionAndMarks(t *testing.T) {
	st, ids := seed(t, "http://a.test/", "http://b.test/", "http://c.test/")
	mailer := &testutil.DummyMailer{}
	d := newDispatcher(st, mailer)

	sent, err := d.Dispatch(context.Background(), []string{ids[0], ids[2], "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	msgs := mailer.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "[QSSAGE] 2 reports dispatched", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "URL: http://a.test/\nLocation: Gangnam Station exit 3")
	assert.Contains(t, msgs[0].Body, "URL: http://c.test/\nLocation: -")
	assert.NotContains(t, msgs[0].Body, "b.test")

	pending, err := st.List(context.Background(), store.ListOptions{Pending: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[1], pending[0].ID)

	got, err := st.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.True(t, got.Dispatched)
	require.NotNil(t, got.DispatchedAt)
	assert.True(t, got.DispatchedAt.Equal(fixedNow))
}

func TestDispatch_Errors(t *testing.T) {
	st, ids := seed(t, "http://a.test/")

	_, err := newDispatcher(st, &testutil.DummyMailer{}).Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoReports)

	_, err = newDispatcher(st, &testutil.DummyMailer{}).Dispatch(context.Background(), []string{"nope"})
	assert.ErrorIs(t, err, ErrNoReports)

	_, err = newDispatcher(st, nil).Dispatch(context.Background(), ids)
	assert.ErrorIs(t, err, notify.ErrNotConfigured)

	_, err = newDispatcher(st, &testutil.DummyMailer{Disabled: true}).Dispatch(context.Background(), ids)
	assert.ErrorIs(t, err, notify.ErrNotConfigured)

	_, err = newDispatcher(&testutil.FailingStore{}, &testutil.DummyMailer{}).Dispatch(context.Background(), ids)
	assert.ErrorIs(t, err, testutil.ErrStoreDown)
}

func TestDispatch_MailFailureLeavesReportsPending(t *testing.T) {
	st, ids := seed(t, "http://a.test/")
	d := newDispatcher(st, &testutil.DummyMailer{Err: errors.New("relay refused")})

	sent, err := d.Dispatch(context.Background(), ids)
	require.Error(t, err)
	assert.Zero(t, sent)

	pending, err := st.List(context.Background(), store.ListOptions{Pending: true})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestBackup_WritesCSVAndPDFAndMails(t *testing.T) {
	st, _ := seed(t, "http://a.test/", "http://b.test/")
	mailer := &testutil.DummyMailer{}
	d := newDispatcher(st, mailer)
	dir := t.TempDir()

	res, err := d.Backup(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Mailed)
	assert.Equal(t, filepath.Join(dir, "reports-2025-06-01T03-00-00-000Z.csv"), res.CSVPath)

	raw, err := os.ReadFile(res.CSVPath)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	urls := []string{rows[1][1], rows[2][1]}
	assert.ElementsMatch(t, []string{"http://a.test/", "http://b.test/"}, urls)

	pdf, err := os.ReadFile(res.PDFPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	msgs := mailer.Sent()
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 2)
	assert.Equal(t, "reports-2025-06-01T03-00-00-000Z.csv", msgs[0].Attachments[0].Filename)
	assert.Equal(t, raw, msgs[0].Attachments[0].Data)
	assert.Equal(t, "application/pdf", msgs[0].Attachments[1].ContentType)
	assert.Contains(t, msgs[0].Body, "2 reports")
}

func TestBackup_WithoutMailerStillWritesFiles(t *testing.T) {
	st, _ := seed(t, "http://a.test/")
	d := newDispatcher(st, nil)

	res, err := d.Backup(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Mailed)
	assert.FileExists(t, res.CSVPath)
	assert.FileExists(t, res.PDFPath)
}

func TestBackup_MailFailureIsNotFatal(t *testing.T) {
	st, _ := seed(t, "http://a.test/")
	d := newDispatcher(st, &testutil.DummyMailer{Err: errors.New("535")})

	res, err := d.Backup(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Mailed)
}

func TestBackup_EmptyStore(t *testing.T) {
	st, _ := seed(t)
	_, err := newDispatcher(st, &testutil.DummyMailer{}).Backup(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoReports)
}
