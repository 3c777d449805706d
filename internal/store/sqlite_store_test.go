package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(&testutil.DummyLogger{}, store.Config{Path: store.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_InsertAssignsIDAndTime(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	lat, lng := 37.5665, 126.9780
	rec, err := s.Insert(ctx, &store.ReportRecord{
		URL:       "http://evil.test/login",
		Note:      "sticker on a parking meter",
		Latitude:  &lat,
		Longitude: &lng,
		Reasons:   []string{"host is a literal IP address"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.DetectedAt.IsZero())
	assert.Equal(t, store.SourceManual, rec.Source)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, rec.Note, got.Note)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, lat, *got.Latitude, 1e-9)
	assert.InDelta(t, lng, *got.Longitude, 1e-9)
	assert.Equal(t, []string{"host is a literal IP address"}, got.Reasons)
	assert.True(t, rec.DetectedAt.Equal(got.DetectedAt))
	assert.False(t, got.Dispatched)
	assert.Nil(t, got.DispatchedAt)
}

func TestSQLiteStore_CorruptReasonsReadAsEmpty(t *testing.T) {
	logger := &testutil.DummyLogger{}
	s, err := store.NewSQLiteStore(logger, store.Config{Path: store.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	rec, err := s.Insert(ctx, &store.ReportRecord{URL: "http://evil.test/", Reasons: []string{"a"}})
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `UPDATE reports SET reasons = 'not json' WHERE id = ?`, rec.ID)
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, got.URL)
	assert.Empty(t, got.Reasons)
	assert.Equal(t, 1, logger.WarnCount())

	all, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].Reasons)
}

func TestSQLiteStore_InsertRejectsEmptyURL(t *testing.T) {
	s := newStore(t)
	_, err := s.Insert(context.Background(), &store.ReportRecord{URL: "  "})
	assert.ErrorIs(t, err, store.ErrInvalidURL)
}

func TestSQLiteStore_DuplicateURLsAreSeparateRecords(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, err := s.Insert(ctx, &store.ReportRecord{URL: "http://dup.test/", Source: store.SourceScan})
	require.NoError(t, err)
	b, err := s.Insert(ctx, &store.ReportRecord{URL: "http://dup.test/", Source: store.SourceScan})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	all, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, u := range []string{"http://a.test/", "http://b.test/", "http://c.test/"} {
		_, err := s.Insert(ctx, &store.ReportRecord{URL: u, DetectedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "http://c.test/", list[0].URL)
	assert.Equal(t, "http://a.test/", list[2].URL)

	limited, err := s.List(ctx, store.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_MarkDispatchedAndPending(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, _ := s.Insert(ctx, &store.ReportRecord{URL: "http://a.test/"})
	b, _ := s.Insert(ctx, &store.ReportRecord{URL: "http://b.test/"})

	at := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	n, err := s.MarkDispatched(ctx, []string{a.ID, a.ID, "missing", ""}, at)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Dispatched)
	require.NotNil(t, got.DispatchedAt)
	assert.True(t, at.Equal(*got.DispatchedAt))

	pending, err := s.List(ctx, store.ListOptions{Pending: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	n, err = s.MarkDispatched(ctx, nil, at)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_GetByIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, _ := s.Insert(ctx, &store.ReportRecord{URL: "http://a.test/"})
	_, _ = s.Insert(ctx, &store.ReportRecord{URL: "http://b.test/"})

	got, err := s.GetByIDs(ctx, []string{a.ID, "nope"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	none, err := s.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, _ := s.Insert(ctx, &store.ReportRecord{URL: "http://a.test/"})

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err := s.Get(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, a.ID), store.ErrNotFound)
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "reports.db")
	s, err := store.NewSQLiteStore(&testutil.DummyLogger{}, store.Config{Path: path})
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), &store.ReportRecord{URL: "http://a.test/"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(&testutil.DummyLogger{}, store.Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	list, err := reopened.List(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
