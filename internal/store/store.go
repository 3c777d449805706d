// Package store persists phishing reports.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("store: report not found")
	ErrInvalidURL = errors.New("store: report url is empty")
)

// ReportStore is the persistence port used by the scanner, the report API and
// the dispatcher. Implementations serialize their own writes.
type ReportStore interface {
	// Insert assigns ID and DetectedAt when empty and returns the stored record.
	Insert(ctx context.Context, r *ReportRecord) (*ReportRecord, error)
	Get(ctx context.Context, id string) (*ReportRecord, error)
	// GetByIDs returns the existing records among ids; unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*ReportRecord, error)
	// List returns records ordered newest first.
	List(ctx context.Context, opts ListOptions) ([]*ReportRecord, error)
	// MarkDispatched flags ids as dispatched at and returns how many rows changed.
	MarkDispatched(ctx context.Context, ids []string, at time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
