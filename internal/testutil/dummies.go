// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ErrorCount returns the number of recorded errors.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── Mailer ────────────────────────────────────────────────────────────

// DummyMailer implements notify.Mailer and records every message.
type DummyMailer struct {
	mu       sync.Mutex
	Messages []notify.Message
	Err      error
	Disabled bool
}

func (m *DummyMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *DummyMailer) Enabled() bool { return !m.Disabled }

// Sent returns a copy of the recorded messages.
func (m *DummyMailer) Sent() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.Messages...)
}

// ─── Store ─────────────────────────────────────────────────────────────

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("testutil: store unavailable")

// FailingStore implements store.ReportStore and fails every call. Calls
// counts Insert attempts.
type FailingStore struct {
	mu    sync.Mutex
	Calls int
}

func (s *FailingStore) Insert(context.Context, *store.ReportRecord) (*store.ReportRecord, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()
	return nil, ErrStoreDown
}

func (s *FailingStore) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

func (s *FailingStore) Get(context.Context, string) (*store.ReportRecord, error) {
	return nil, ErrStoreDown
}

func (s *FailingStore) GetByIDs(context.Context, []string) ([]*store.ReportRecord, error) {
	return nil, ErrStoreDown
}

func (s *FailingStore) List(context.Context, store.ListOptions) ([]*store.ReportRecord, error) {
	return nil, ErrStoreDown
}

func (s *FailingStore) MarkDispatched(context.Context, []string, time.Time) (int64, error) {
	return 0, ErrStoreDown
}

func (s *FailingStore) Delete(context.Context, string) error { return ErrStoreDown }

func (s *FailingStore) Close() error { return nil }
