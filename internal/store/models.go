package store

import "time"

// Report sources.
const (
	SourceScan   = "scan"
	SourceManual = "manual"
)

// ReportRecord is one suspicious-URL report, either filed automatically by a
// scan or submitted by a user.
type ReportRecord struct {
	ID  string `json:"id"`
	URL string `json:"url"`

	// Location is free text ("unknown" for automatic reports); Latitude and
	// Longitude are set when the client sent coordinates.
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Note      string   `json:"note,omitempty"`

	Source  string   `json:"source"`
	Risk    string   `json:"risk,omitempty"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`

	DetectedAt   time.Time  `json:"detected_at"`
	Dispatched   bool       `json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

// ListOptions narrows List. The zero value lists everything, newest first.
type ListOptions struct {
	// Pending restricts the result to reports not yet dispatched.
	Pending bool
	// Limit caps the number of rows; <= 0 means no limit.
	Limit int
}
